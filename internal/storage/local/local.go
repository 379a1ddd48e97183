// Package local implements the local filesystem icon storage backend. Objects
// are served back through the gateway's own HTTP server under /icons/, so the
// public URL stays stable across uploads. Intended for development and
// single-node deployments; production should use a cloud backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/storage"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.IconStore, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// LocalStore implements the IconStore interface for local filesystem storage
type LocalStore struct {
	basePath string
	baseURL  string
}

// New creates a new local filesystem icon storage backend
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStore{
		basePath: cfg.BasePath,
		baseURL:  strings.TrimRight(serverBaseURL, "/"),
	}, nil
}

// Upload stores an object in the local filesystem
func (s *LocalStore) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string, overwrite bool) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))

	if !overwrite {
		if _, err := os.Stat(fullPath); err == nil {
			return storage.ErrObjectExists
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		// Clean up partial file
		_ = os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// PublicURL returns the gateway-served URL for an object
func (s *LocalStore) PublicURL(path string) string {
	return s.baseURL + "/icons/" + strings.TrimLeft(path, "/")
}

// Delete removes an object from the local filesystem
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether an object occupies path
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(path))
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// BasePath returns the backing directory, used by the HTTP server to mount the
// static /icons/ route.
func (s *LocalStore) BasePath() string {
	return s.basePath
}
