package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a stored file does not exist.
var ErrNotFound = errors.New("stored file not found")

// Storage defines the interface for keeping the raw files uploaded for
// import batches. Keys are slash separated and relative to the backend root.
type Storage interface {
	// Save writes r under key, replacing any previous content.
	Save(ctx context.Context, key string, r io.Reader) error

	Open(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
