package host

import "errors"

var (
	// ErrInvalidFile indicates the breakpoints file could not be parsed.
	ErrInvalidFile = errors.New("invalid breakpoints file")

	// ErrUnsupportedVersion indicates a breakpoints file version this build
	// does not read.
	ErrUnsupportedVersion = errors.New("unsupported breakpoints file version")
)
