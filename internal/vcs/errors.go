package vcs

import "errors"

// Error types for branch detection.
var (
	// ErrNotRepository indicates the path is not a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRepositoryNotFound indicates no repository was found.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrEmptyHead indicates the HEAD file has no content.
	ErrEmptyHead = errors.New("empty HEAD")

	// ErrDetectorClosed indicates the detector has been closed.
	ErrDetectorClosed = errors.New("detector closed")
)
