// internal/core/ports/cache.go
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when key holds no value
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository stores JSON values and expiring counters
type CacheRepository interface {
	// Get decodes the value at key into dest, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dest any) error
	// Set stores value under key for ttl; a non-positive ttl uses the
	// repository default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Count increments the counter at key and (re)arms its expiry,
	// returning the new count.
	Count(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
