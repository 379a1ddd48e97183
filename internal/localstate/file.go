// file.go implements the file-backed state store: a single JSON document under
// the user config dir, rewritten atomically on every Set. This is the default
// backend and the moral equivalent of the browser profile storage the app
// frontend used to own.
package localstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bandroomhq/bandroom/internal/config"
)

func init() {
	Register("file", func(cfg *config.StateConfig) (Store, error) {
		return NewFileStore(cfg.File.Path)
	})
}

// FileStore implements Store on a single JSON file
type FileStore struct {
	path string

	mu sync.Mutex
}

// NewFileStore creates a file-backed store at path. An empty path resolves to
// <user config dir>/bandroom/state.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user config dir: %w", err)
		}
		path = filepath.Join(base, "bandroom", "state.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Get returns the value for key, or ErrNotFound
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return "", err
	}

	value, ok := state[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set writes the value for key
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	state[key] = value
	return s.write(state)
}

// Delete removes key
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := state[key]; !ok {
		return nil
	}
	delete(state, key)
	return s.write(state)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("failed to parse state file: %w", err)
		}
	}
	return state, nil
}

// write rewrites the whole document via a temp file + rename so a crash mid-write
// never leaves a truncated state file behind.
func (s *FileStore) write(state map[string]string) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
