// Package gcs implements the Google Cloud Storage icon storage backend. Icon
// buckets are public-read, so PublicURL uses the standard storage.googleapis.com
// object URL unless a CDN base is configured.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/bandroomhq/bandroom/internal/config"
	appstorage "github.com/bandroomhq/bandroom/internal/storage"
)

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.IconStore, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStore implements the IconStore interface for Google Cloud Storage
type GCSStore struct {
	client        *storage.Client
	bucket        string
	publicURLBase string
}

// New creates a new GCS icon storage backend. Credentials come from the
// configured service account file, or from Application Default Credentials
// when none is set.
func New(cfg *appconfig.GCSStorageConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicURLBase: strings.TrimRight(cfg.PublicURLBase, "/"),
	}, nil
}

// Close releases the underlying client
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Upload stores an object in GCS
func (s *GCSStore) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string, overwrite bool) error {
	obj := s.client.Bucket(s.bucket).Object(path)
	if !overwrite {
		// Precondition makes the no-overwrite case atomic on the GCS side.
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, reader); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if !overwrite {
			return appstorage.ErrObjectExists
		}
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return nil
}

// PublicURL returns the stable public object URL
func (s *GCSStore) PublicURL(path string) string {
	path = strings.TrimLeft(path, "/")
	if s.publicURLBase != "" {
		return s.publicURLBase + "/" + path
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, path)
}

// Delete removes an object from GCS
func (s *GCSStore) Delete(ctx context.Context, path string) error {
	obj := s.client.Bucket(s.bucket).Object(path)
	if err := obj.Delete(ctx); err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Exists reports whether an object occupies path
func (s *GCSStore) Exists(ctx context.Context, path string) (bool, error) {
	obj := s.client.Bucket(s.bucket).Object(path)

	_, err := obj.Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}
