// Package storage defines the IconStore interface and common types for all icon
// storage backends used by the Bandroom gateway. Icons are the only objects this
// layer handles; paths are derived from workspace ids by the manager.
//
// New backends are added by implementing the IconStore interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.IconStore, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger init().
// This means adding a new backend requires no changes to the factory or main
// package — only a blank import in cmd/server/main.go.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectExists is returned by Upload when overwrite is false and an object
// already occupies the path.
var ErrObjectExists = errors.New("storage: object already exists")

// IconStore defines the interface for all icon storage backends
type IconStore interface {
	// Upload stores an object at path. When overwrite is false and the path is
	// occupied, Upload fails with ErrObjectExists; icon uploads always pass
	// overwrite=true so re-uploading a workspace icon replaces it.
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string, overwrite bool) error

	// PublicURL returns the stable public URL for an uploaded object. It is
	// assumed to succeed whenever the object exists, so it returns no error.
	PublicURL(path string) string

	// Delete removes the object at path
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object occupies path
	Exists(ctx context.Context, path string) (bool, error)
}
