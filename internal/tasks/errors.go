package tasks

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Update when the task no longer exists.
var ErrNotFound = errors.New("task not found")

// TransportError means the store could not be reached. The operation may
// succeed if the user tries again.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: store unreachable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable is always true; it exists so callers can ask without a type switch.
func (e *TransportError) Retryable() bool { return true }

// IsNotFound reports whether err means the target task is gone
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport reports whether err is a store connectivity failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
