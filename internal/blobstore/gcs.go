package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore is the Store implementation backed by a Google Cloud Storage bucket.
// The client is owned by the caller and shared across operations.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store over bucket using an existing client.
func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

// Bucket returns the bucket name this store writes to.
func (s *GCSStore) Bucket() string {
	return s.bucket
}

// Read implements Store.
func (s *GCSStore) Read(ctx context.Context, name string) ([]byte, error) {
	rc, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("Read: gs://%s/%s: %w", s.bucket, name, ErrNotExist)
		}
		return nil, fmt.Errorf("Read: open gs://%s/%s: %w", s.bucket, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Read: reading gs://%s/%s: %w", s.bucket, name, err)
	}
	return data, nil
}

// Write implements Store.
func (s *GCSStore) Write(ctx context.Context, name string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Write: gs://%s/%s: %w", s.bucket, name, err)
	}
	// Close finalizes the upload; the object is not visible before it returns.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Write: finalize gs://%s/%s: %w", s.bucket, name, err)
	}
	return nil
}

// UploadFile copies a local file into the bucket under name.
func (s *GCSStore) UploadFile(ctx context.Context, name, filePath, contentType string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}

var _ Store = (*GCSStore)(nil)
