package domain

import (
	"fmt"
	"strconv"
)

// ValidationError means input or a record failed a constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// InvariantViolation is a defect in reconciliation bookkeeping. It is never
// recoverable by retrying.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}

// TransientStorageError wraps storage failures that may succeed on retry,
// such as a locked database or an expired deadline.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("transient storage error during %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

func quote(s string) string { return strconv.Quote(s) }
