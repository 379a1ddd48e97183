package localstate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bandroomhq/bandroom/internal/config"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestFileStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), KeyActiveWorkspace)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_SetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, KeyActiveWorkspace, "ws-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, KeyActiveWorkspace)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ws-1" {
		t.Errorf("Get = %q, want ws-1", got)
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Set(ctx, KeyActiveWorkspace, "ws-2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore (reopen): %v", err)
	}
	got, err := reopened.Get(ctx, KeyActiveWorkspace)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != "ws-2" {
		t.Errorf("Get = %q, want ws-2", got)
	}
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, KeySession, "blob"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(ctx, KeySession); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, KeySession); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, KeySession); err != nil {
		t.Errorf("Delete (absent): %v", err)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Get(context.Background(), KeyActiveWorkspace); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestNewStore_UnknownBackend(t *testing.T) {
	_, err := NewStore(&config.StateConfig{Backend: "etcd"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewStore_FileBackend(t *testing.T) {
	cfg := &config.StateConfig{
		Backend: "file",
		File:    config.FileStateConfig{Path: filepath.Join(t.TempDir(), "state.json")},
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("store = %T, want *FileStore", store)
	}
}
