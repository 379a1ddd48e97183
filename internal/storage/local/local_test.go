package local

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/storage"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:8090/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestUploadAndExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	body := strings.NewReader("png-bytes")
	if err := store.Upload(ctx, "ws-1/ws-1.png", body, 9, "image/png", true); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	exists, err := store.Exists(ctx, "ws-1/ws-1.png")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	exists, err = store.Exists(ctx, "ws-2/ws-2.png")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected object to be absent")
	}
}

func TestUpload_NoOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upload(ctx, "ws-1/ws-1.png", strings.NewReader("v1"), 2, "image/png", true); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	err := store.Upload(ctx, "ws-1/ws-1.png", strings.NewReader("v2"), 2, "image/png", false)
	if !errors.Is(err, storage.ErrObjectExists) {
		t.Errorf("err = %v, want ErrObjectExists", err)
	}

	// overwrite=true replaces the object
	if err := store.Upload(ctx, "ws-1/ws-1.png", strings.NewReader("v2"), 2, "image/png", true); err != nil {
		t.Errorf("Upload (overwrite): %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	store := newTestStore(t)
	got := store.PublicURL("ws-1/ws-1.png")
	want := "http://localhost:8090/icons/ws-1/ws-1.png"
	if got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Upload(ctx, "ws-1/ws-1.png", strings.NewReader("x"), 1, "image/png", true); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := store.Delete(ctx, "ws-1/ws-1.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := store.Exists(ctx, "ws-1/ws-1.png")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected object to be gone")
	}

	// Deleting an absent object is not an error.
	if err := store.Delete(ctx, "ws-1/ws-1.png"); err != nil {
		t.Errorf("Delete (absent): %v", err)
	}
}
