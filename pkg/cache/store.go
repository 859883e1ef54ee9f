package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when a key has no record.
var ErrNotFound = errors.New("cache: key not found")

// Store is the durable byte-level backend behind a Cache. Keys passed to a
// Store are already namespaced. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the record for key, replacing any previous one.
	Set(ctx context.Context, key string, record []byte) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every stored key that starts with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases backend resources.
	Close() error
}
