// Package blobstore abstracts the object stores that hold embeddings, region
// maps and published profile sets.
package blobstore

import (
	"context"
	"errors"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for empty names or names escaping the store root.
var ErrInvalidName = errors.New("invalid blob name")

// Store reads and writes whole blobs by name.
type Store interface {
	// Get returns the full content of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put writes a blob, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// IsFolderKey reports whether name is a directory placeholder such as
// "embeddings/" that some stores list alongside real objects.
func IsFolderKey(name string) bool {
	return strings.HasSuffix(name, "/")
}
