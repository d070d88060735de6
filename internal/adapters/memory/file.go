// internal/adapters/memory/file.go
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// FileStore is a DurableStore kept as a single JSON object on disk.
// Every write rewrites the file through a temp file and rename.
type FileStore struct {
	path string

	mu    sync.RWMutex
	items map[string]string
}

var _ ports.DurableStore = (*FileStore)(nil)

// NewFileStore opens the store at path, creating parent directories.
// A missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{path: path, items: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.items); err != nil {
		return nil, fmt.Errorf("failed to decode store file %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) GetItem(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return value, nil
}

func (s *FileStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.items[key]
	s.items[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.items[key] = prev
		} else {
			delete(s.items, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.items[key]
	if !had {
		return nil
	}
	delete(s.items, key)
	if err := s.flush(); err != nil {
		s.items[key] = prev
		return err
	}
	return nil
}

func (s *FileStore) flush() error {
	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".cartstore-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
