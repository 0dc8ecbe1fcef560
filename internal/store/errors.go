package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no profile has the requested id.
var ErrNotFound = errors.New("profile not found")

// Error is a failure from the underlying database, or a batch rejected
// before writing, tagged with the store operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// opError wraps err as an *Error unless it is nil.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IsStoreError reports whether err came from the store.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
