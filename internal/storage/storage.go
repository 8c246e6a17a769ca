// Package storage defines where run artifacts are written. Implementations
// live in the gcs, local and memory subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes one object and returns a URI that locates it.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}
