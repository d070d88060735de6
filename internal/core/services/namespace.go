// internal/core/services/namespace.go
package services

import (
	"context"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// NamespacedStore prefixes every key before delegating to the wrapped store.
type NamespacedStore struct {
	inner  ports.DurableStore
	prefix string
}

var _ ports.DurableStore = (*NamespacedStore)(nil)

// NewNamespacedStore wraps inner so that key k is stored as prefix+k
func NewNamespacedStore(inner ports.DurableStore, prefix string) *NamespacedStore {
	return &NamespacedStore{inner: inner, prefix: prefix}
}

func (n *NamespacedStore) GetItem(ctx context.Context, key string) (string, error) {
	return n.inner.GetItem(ctx, n.prefix+key)
}

func (n *NamespacedStore) SetItem(ctx context.Context, key, value string) error {
	return n.inner.SetItem(ctx, n.prefix+key, value)
}

func (n *NamespacedStore) RemoveItem(ctx context.Context, key string) error {
	return n.inner.RemoveItem(ctx, n.prefix+key)
}

// SessionPrefix is the durable key prefix of a session's cart
func SessionPrefix(sessionID string) string {
	return "session:" + sessionID + ":"
}
