// factory.go implements the icon storage backend registry and factory, mapping
// backend type strings (local, s3, azure, gcs) to constructor functions and
// dispatching NewIconStore calls.
package storage

import (
	"fmt"

	"github.com/bandroomhq/bandroom/internal/config"
)

// FactoryFunc creates an icon storage backend from configuration
type FactoryFunc func(*config.Config) (IconStore, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewIconStore creates an icon storage backend based on configuration
func NewIconStore(cfg *config.Config) (IconStore, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local', 'azure', 's3', or 'gcs')", cfg.Storage.DefaultBackend)
	}

	return factory(cfg)
}
