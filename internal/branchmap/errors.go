package branchmap

import "errors"

// Error types for branch map operations.
var (
	// ErrInvalidBlob indicates the persisted value is not valid JSON.
	ErrInvalidBlob = errors.New("invalid branch map blob")

	// ErrUnknownVersion indicates a schema version this build cannot read.
	ErrUnknownVersion = errors.New("unknown branch map version")

	// ErrBranchFailed indicates processing of a single branch failed.
	ErrBranchFailed = errors.New("branch processing failed")
)
