package scheduler

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound is returned by every lifecycle verb addressing a task id
// that does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ValidationError marks a malformed create/update request, surfaced to the
// RPC caller verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
