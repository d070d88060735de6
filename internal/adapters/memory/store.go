// internal/adapters/memory/store.go
package memory

import (
	"context"
	"sync"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// Store is an in-process DurableStore. Contents are lost on restart.
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

var _ ports.DurableStore = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{items: make(map[string]string)}
}

func (s *Store) GetItem(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return value, nil
}

func (s *Store) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *Store) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Keys returns the stored keys in no particular order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}
