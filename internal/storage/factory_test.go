package storage

import (
	"context"
	"io"
	"testing"

	"github.com/bandroomhq/bandroom/internal/config"
)

type fakeStore struct{}

func (fakeStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, overwrite bool) error {
	return nil
}
func (fakeStore) PublicURL(path string) string                     { return "http://example/" + path }
func (fakeStore) Delete(ctx context.Context, path string) error    { return nil }
func (fakeStore) Exists(ctx context.Context, path string) (bool, error) { return false, nil }

func TestNewIconStore_Registered(t *testing.T) {
	Register("fake", func(cfg *config.Config) (IconStore, error) {
		return fakeStore{}, nil
	})
	t.Cleanup(func() { delete(factories, "fake") })

	cfg := &config.Config{Storage: config.StorageConfig{DefaultBackend: "fake"}}
	store, err := NewIconStore(cfg)
	if err != nil {
		t.Fatalf("NewIconStore: %v", err)
	}
	if _, ok := store.(fakeStore); !ok {
		t.Errorf("store = %T, want fakeStore", store)
	}
}

func TestNewIconStore_Unknown(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{DefaultBackend: "tape"}}
	if _, err := NewIconStore(cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
