// Package kv provides workspace-scoped key-value persistence.
//
// Values are opaque byte blobs. Every store is bound to a scope (normally
// the absolute workspace root) so several workspaces can share one
// database file without seeing each other's state.
package kv

import (
	"context"
	"errors"
)

// Error types for key-value operations.
var (
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")

	// ErrEmptyKey indicates an empty key was supplied.
	ErrEmptyKey = errors.New("empty key")
)

// Store is a scoped key-value blob store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}
