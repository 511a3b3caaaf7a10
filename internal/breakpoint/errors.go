package breakpoint

import "errors"

// Error types for breakpoint operations.
var (
	// ErrMalformed indicates a decoded entry with both or neither of
	// location and functionName set.
	ErrMalformed = errors.New("malformed breakpoint")

	// ErrUnconstructible indicates a value that cannot be turned into a
	// live host breakpoint.
	ErrUnconstructible = errors.New("cannot construct breakpoint")
)
