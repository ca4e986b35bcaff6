// Package storage wraps the GCS bucket that holds uploaded payment files.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// FileStore is the narrow contract the ingestion job and the upload
// endpoint have with the blob store. Implementations must be safe for
// concurrent use.
type FileStore interface {
	// Exists reports whether the object is present in the bucket.
	Exists(ctx context.Context, bucket, object string) (bool, error)

	// Fetch downloads the full object content.
	// Returns ErrObjectNotFound if the object does not exist.
	Fetch(ctx context.Context, bucket, object string) ([]byte, error)

	// Put writes the reader's content to the object, replacing any
	// previous content.
	Put(ctx context.Context, bucket, object string, r io.Reader) error

	// Delete removes the object. Deleting a missing object is an error.
	Delete(ctx context.Context, bucket, object string) error
}
