// Package localstate persists small per-profile state across gateway restarts:
// the active workspace selection and the current session blob. It is a plain
// durable key-value surface with no expiry and no encryption.
//
// Backends are registered with the factory via an init() function in the
// backend's own file, mirroring the storage package: adding a backend requires
// no changes here.
package localstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/bandroomhq/bandroom/internal/config"
)

// Well-known keys. Callers may use arbitrary keys; these are the ones the
// gateway itself reads and writes.
const (
	KeyActiveWorkspace = "activeWorkspaceId"
	KeySession         = "session"
)

// ErrNotFound is returned by Get when the key has never been set
var ErrNotFound = errors.New("localstate: key not found")

// Store is a durable key-value store scoped to the user profile
type Store interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key, creating it if absent
	Set(ctx context.Context, key, value string) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}

// FactoryFunc creates a state store from configuration
type FactoryFunc func(*config.StateConfig) (Store, error)

var factories = make(map[string]FactoryFunc)

// Register registers a state backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStore creates a state store based on configuration
func NewStore(cfg *config.StateConfig) (Store, error) {
	factory, ok := factories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unsupported state backend: %s (must be 'file' or 'redis')", cfg.Backend)
	}

	return factory(cfg)
}
