package repo

import (
	"context"
)

// Storage persistence backend of the snapshot slot and its backups.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Write stores data with the given key, replacing previous data.
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves data for the given key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted descending (newest first).
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data for the given key, nil if it does not exist.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the storage backend.
	Close() error
}
