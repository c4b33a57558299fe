package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound indicates the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidPath indicates a path that is empty or escapes the store root.
	ErrInvalidPath = errors.New("invalid blob path")
)

// BlobStore is a key-addressed blob store. Paths are slash separated and
// relative to the store root.
type BlobStore interface {
	// Put creates or overwrites the blob at path. A failed Put leaves no
	// partial blob behind.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get opens the blob for reading. Caller closes the reader.
	// Returns ErrNotFound if the blob does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)
}

// Tiers groups the fast local tier with the durable remote tier.
type Tiers struct {
	Local  BlobStore
	Remote BlobStore
}

// For returns the tier currently holding a file's bytes.
func (t Tiers) For(replicated bool) BlobStore {
	if replicated {
		return t.Remote
	}
	return t.Local
}
