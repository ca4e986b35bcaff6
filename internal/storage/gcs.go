package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSFileStore is the FileStore implementation backed by Google Cloud
// Storage. It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type GCSFileStore struct {
	client *storage.Client
}

// NewGCSFileStore creates a file store with a shared storage client.
func NewGCSFileStore(ctx context.Context) (*GCSFileStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSFileStore{client: client}, nil
}

// Close closes the underlying storage client.
func (s *GCSFileStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Exists implements FileStore.
func (s *GCSFileStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %s/%s: %w", bucket, object, err)
	}
	return true, nil
}

// Fetch implements FileStore.
func (s *GCSFileStore) Fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, object, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object reader %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// Put implements FileStore.
func (s *GCSFileStore) Put(ctx context.Context, bucket, object string, r io.Reader) error {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to object writer %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Delete implements FileStore.
func (s *GCSFileStore) Delete(ctx context.Context, bucket, object string) error {
	if err := s.client.Bucket(bucket).Object(object).Delete(ctx); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, object, err)
	}
	return nil
}

// Ensure GCSFileStore implements FileStore.
var _ FileStore = (*GCSFileStore)(nil)
