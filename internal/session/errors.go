package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrAlreadyRunning indicates Run was called on a running session.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotOpen indicates an operation that needs Open first.
	ErrNotOpen = errors.New("session not open")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrReadOnly indicates persistence is disabled because the stored map
	// could not be read. Clearing the map re-enables it.
	ErrReadOnly = errors.New("persistence disabled")
)

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name (e.g., "save", "apply", "reload")
	Target string // Target of the operation (e.g., branch name, file path)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
