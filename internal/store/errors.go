package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/soyeahso/remdev/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// classify maps driver errors onto the domain error taxonomy so callers can
// decide between retrying and rejecting.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransientStorageError{Op: op, Err: err}
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return &domain.TransientStorageError{Op: op, Err: err}
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%s: %w", op, &domain.ValidationError{Message: constraintMessage(se.Error())})
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// constraintMessage trims the driver prefix off a constraint failure, e.g.
// "constraint failed: UNIQUE constraint failed: agents.name (2067)".
func constraintMessage(msg string) string {
	if i := strings.Index(msg, "constraint failed: "); i >= 0 {
		msg = msg[i+len("constraint failed: "):]
	}
	return msg
}

// Timestamps are stored as fixed-width UTC text so that SQL comparisons
// between columns order the same way the instants do.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime rejects malformed values. A zero time would read as an expired
// workspace.
func parseTime(column, s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, &domain.InvariantViolation{
			Message: fmt.Sprintf("column %s: invalid timestamp %q", column, s),
		}
	}
	return t, nil
}
