package receipt

import (
	"context"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
)

// GCSStorage implements the Storage interface on a Cloud Storage bucket.
// Objects are named prefix/key.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a GCSStorage using Application Default Credentials
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCSStorage) object(key string) *gcs.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, key))
}

// Save uploads data as an object
func (g *GCSStorage) Save(ctx context.Context, key string, data []byte) (string, error) {
	w := g.object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing upload of %s: %w", key, err)
	}
	return key, nil
}

// Get downloads an object
func (g *GCSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading bytes of %s: %w", key, err)
	}
	return data, nil
}

// Delete removes an object
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	if err := g.object(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// Close releases the storage client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
