package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCS stores receipt objects in a Google Cloud Storage bucket and hands out
// short-lived signed read URLs for external services.
type GCS struct {
	client       *storage.Client
	bucket       string
	signedURLTTL time.Duration
	logger       *zap.Logger
}

func NewGCS(ctx context.Context, bucket string, signedURLTTL time.Duration, logger *zap.Logger) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCS{
		client:       client,
		bucket:       bucket,
		signedURLTTL: signedURLTTL,
		logger:       logger,
	}, nil
}

// Upload streams the reader into the bucket under the given object path.
func (g *GCS) Upload(ctx context.Context, path string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to copy object to storage writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload: %w", err)
	}

	g.logger.Info("Receipt object stored", zap.String("path", path))
	return nil
}

// Download reads the full object bytes.
func (g *GCS) Download(ctx context.Context, path string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object bytes: %w", err)
	}
	return data, nil
}

// SignedURL returns a short-lived read URL for the object, suitable for
// passing to an external OCR service.
func (g *GCS) SignedURL(ctx context.Context, path string) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(g.signedURLTTL),
		Scheme:  storage.SigningSchemeV4,
	}

	url, err := g.client.Bucket(g.bucket).SignedURL(path, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

// Delete removes the object. Missing objects are not an error so record
// deletion stays idempotent.
func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.client.Bucket(g.bucket).Object(path).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete object %s: %w", path, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
