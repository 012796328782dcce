// Package storage persists extraction exports as immutable objects.
package storage

import (
	"context"
	"errors"
)

// Common errors for object store operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStore abstracts the export destination.
// Implementations include S3 and the local filesystem.
type ObjectStore interface {
	// Put writes data under objectPath, overwriting any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get reads the object at objectPath.
	// Returns ErrObjectNotFound if no such object exists.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists reports whether an object exists at objectPath.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at objectPath. Deleting an absent
	// object is not an error.
	Delete(ctx context.Context, objectPath string) error
}
