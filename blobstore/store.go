package blobstore

import "context"

// Store is a byte-blob store for page artifacts, keyed by the encoded
// cache key. Implementations must be safe for concurrent use.
type Store interface {
	// Put stores an artifact blob. Bounded implementations return
	// models.ErrQuotaExceeded when the write does not fit.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves an artifact by key.
	// Returns nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes an artifact.
	Delete(ctx context.Context, key string) error

	// Close releases any resources.
	Close() error
}
