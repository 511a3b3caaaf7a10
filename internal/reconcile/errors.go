package reconcile

import "errors"

// Error types for reconciliation.
var (
	// ErrBusy indicates an apply was requested while one is in progress.
	ErrBusy = errors.New("reconciler is applying")

	// ErrNoHost indicates the reconciler has no host.
	ErrNoHost = errors.New("no host attached")
)
