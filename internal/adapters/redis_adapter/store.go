// internal/adapters/redis/store.go
package redis_a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// Store is a DurableStore backed by Redis strings. A positive retention is
// refreshed on every write, so carts untouched for that long expire.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	logger    *slog.Logger
}

var _ ports.DurableStore = (*Store)(nil)

// NewStore creates a Redis-backed durable store. Keys are stored as prefix+key.
func NewStore(client redis.UniversalClient, prefix string, retention time.Duration, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		prefix:    prefix,
		retention: retention,
		logger:    logger.With(slog.String("component", "redis_store")),
	}
}

func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ports.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.retention).Err(); err != nil {
		s.logger.ErrorContext(ctx, "failed to write cart",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
