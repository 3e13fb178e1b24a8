package stripedmap

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument is returned when a table is constructed with a
	// capacity below 1, a load factor outside (0.1, 1.0] or a non-positive
	// timeout.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrEmpty is returned by PopItem when no entry could be removed.
	ErrEmpty = errors.New("table is empty")
	// ErrLockTimeout is returned when a bucket lock could not be acquired
	// within the configured timeout. It is transient, the caller may retry.
	ErrLockTimeout = errors.New("lock acquisition timed out")
	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("table is closed")
)

// OpError records the operation and key that failed.
type OpError struct {
	Op  string
	Key any
	Err error
}

func (e *OpError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("%s %v: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op string, key any, err error) error {
	return &OpError{Op: op, Key: key, Err: err}
}
