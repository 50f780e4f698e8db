package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/soyeahso/remdev/internal/domain"
)

// retryAfterMs is the back-off suggested to agents on transient failures.
const retryAfterMs = 2000

// Error codes shared by the RPC and REST transports.
const (
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeForbidden      = "forbidden"
	CodeNotFound       = "not_found"
	CodeMethodNotFound = "method_not_found"
	CodeUnavailable    = "unavailable"
	CodeInternal       = "internal"
)

// errorShape maps a reconciliation or storage error onto the wire error and
// its HTTP status.
func errorShape(err error) (ErrorShape, int) {
	var (
		validation *domain.ValidationError
		transient  *domain.TransientStorageError
	)
	switch {
	case errors.As(err, &validation):
		return ErrorShape{Code: CodeInvalidParams, Message: err.Error()}, http.StatusBadRequest
	case errors.As(err, &transient), errors.Is(err, context.DeadlineExceeded):
		return ErrorShape{
			Code:       CodeUnavailable,
			Message:    err.Error(),
			Retryable:  true,
			RetryAfter: retryAfterMs,
		}, http.StatusServiceUnavailable
	case errors.Is(err, errReconcilerMissing):
		return ErrorShape{Code: CodeUnavailable, Message: err.Error()}, http.StatusServiceUnavailable
	default:
		// Invariant violations and unknown failures; details stay in the server log.
		return ErrorShape{Code: CodeInternal, Message: "internal error"}, http.StatusInternalServerError
	}
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	var transient *domain.TransientStorageError
	return errors.As(err, &transient) || errors.Is(err, context.DeadlineExceeded)
}
