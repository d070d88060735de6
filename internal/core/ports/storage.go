// internal/core/ports/storage.go
package ports

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by a DurableStore when the key is absent
var ErrKeyNotFound = errors.New("key not found")

// DurableStore is a persistent string-keyed, string-valued store.
// Values are always written in full.
type DurableStore interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
