package blobstore

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the named object is absent.
var ErrNotExist = errors.New("blob does not exist")

// Store provides an interface for object storage operations.
// This interface enables swapping GCS for an in-memory store in tests.
type Store interface {
	// Read returns the full contents of the named object.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write replaces the named object with data.
	Write(ctx context.Context, name string, data []byte, contentType string) error
}
