// Package gcs archives audit reports to Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
}

type writerFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// Archive writes report objects into one bucket.
type Archive struct {
	bucket    string
	newWriter writerFunc
}

var _ audit.BlobStore = (*Archive)(nil)

// New creates a GCS-backed archive.
func New(client *storage.Client, cfg Config) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	bucket := client.Bucket(cfg.Bucket)
	return &Archive{
		bucket: cfg.Bucket,
		newWriter: func(ctx context.Context, object, contentType string) io.WriteCloser {
			w := bucket.Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
	}, nil
}

// PutObject uploads r and returns a gs:// URI. The upload is committed only
// when the writer closes cleanly.
func (a *Archive) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	w := a.newWriter(ctx, path, contentType)
	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, path), nil
}
