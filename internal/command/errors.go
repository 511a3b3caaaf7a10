package command

import "errors"

// Registry errors.
var (
	// ErrNotFound indicates no command is registered under the ID.
	ErrNotFound = errors.New("command: not found")

	// ErrDuplicate indicates a command is already registered under the ID.
	ErrDuplicate = errors.New("command: already registered")

	// ErrInvalid indicates a command without an ID or handler.
	ErrInvalid = errors.New("command: invalid command")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("command: handler panic")
)
