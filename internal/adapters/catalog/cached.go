// internal/adapters/catalog/cached.go
package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// CachedCatalog caches product metadata in front of a CatalogService.
// Stock has no cached counterpart.
type CachedCatalog struct {
	next   ports.CatalogService
	cache  ports.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

var _ ports.CatalogService = (*CachedCatalog)(nil)

// NewCachedCatalog creates a read-through product cache
func NewCachedCatalog(next ports.CatalogService, cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "catalog_cache")),
	}
}

// ProductKey is the cache key of a product
func ProductKey(productID int) string {
	return redis_a.BuildKey(redis_a.PrefixCatalog, "product", strconv.Itoa(productID))
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID int) (*domain.Product, error) {
	key := ProductKey(productID)

	var cached domain.Product
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ports.ErrCacheMiss) {
		c.logger.WarnContext(ctx, "product cache unavailable, reading through",
			slog.Int("product_id", productID),
			slog.String("error", err.Error()))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		p, err := c.next.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		if err := c.cache.Set(ctx, key, p, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "failed to cache product",
				slog.Int("product_id", productID),
				slog.String("error", err.Error()))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	p, _ := v.(*domain.Product)
	if p == nil {
		return nil, nil
	}
	// Callers sharing a flight must not share the pointer
	out := *p
	return &out, nil
}
