package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/test/helpers"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	cache := redis_a.NewCache(client, 5*time.Minute, helpers.TestLogger())

	product := helpers.CreateTestProduct(7)
	require.NoError(t, cache.Set(ctx, "catalog:product:7", product, 0))
	assert.Equal(t, 5*time.Minute, mr.TTL("catalog:product:7"))

	var got domain.Product
	require.NoError(t, cache.Get(ctx, "catalog:product:7", &got))
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, product.Name, got.Name)
	assert.True(t, product.Price.Equal(got.Price))
}

func TestCache_SetExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	cache := redis_a.NewCache(client, 5*time.Minute, helpers.TestLogger())

	require.NoError(t, cache.Set(ctx, "ttl:test", "value", 100*time.Millisecond))

	var result string
	require.NoError(t, cache.Get(ctx, "ttl:test", &result))
	assert.Equal(t, "value", result)

	mr.FastForward(200 * time.Millisecond)

	err := cache.Get(ctx, "ttl:test", &result)
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestCache_GetUndecodable(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	cache := redis_a.NewCache(client, time.Minute, helpers.TestLogger())

	require.NoError(t, mr.Set("catalog:product:9", "{"))

	var got domain.Product
	err := cache.Get(ctx, "catalog:product:9", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrCacheMiss)
}

func TestCache_Count(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	cache := redis_a.NewCache(client, time.Minute, helpers.TestLogger())

	key := redis_a.BuildKey(redis_a.PrefixNotifications, "stock_exceeded", "2026-10-14")
	assert.Equal(t, "notifications:stock_exceeded:2026-10-14", key)

	n, err := cache.Count(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = cache.Count(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.Close()
	_, err = cache.Count(ctx, key, time.Hour)
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := redis_a.NewStore(client, "storefront:", 24*time.Hour, helpers.TestLogger())

	_, err := store.GetItem(ctx, "session:abc:cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)

	require.NoError(t, store.SetItem(ctx, "session:abc:cart:v1", `[{"id":1,"amount":2}]`))

	value, err := store.GetItem(ctx, "session:abc:cart:v1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":2}]`, value)

	raw, err := mr.Get("storefront:session:abc:cart:v1")
	require.NoError(t, err)
	assert.Equal(t, value, raw)
	assert.Equal(t, 24*time.Hour, mr.TTL("storefront:session:abc:cart:v1"))

	require.NoError(t, store.RemoveItem(ctx, "session:abc:cart:v1"))
	_, err = store.GetItem(ctx, "session:abc:cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestStore_RetentionExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := redis_a.NewStore(client, "", time.Hour, helpers.TestLogger())

	require.NoError(t, store.SetItem(ctx, "cart:v1", `[]`))
	mr.FastForward(2 * time.Hour)

	_, err := store.GetItem(ctx, "cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	store := redis_a.NewStore(client, "", 0, helpers.TestLogger())
	mr.Close()

	_, err := store.GetItem(ctx, "cart:v1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrKeyNotFound)
	assert.Error(t, store.SetItem(ctx, "cart:v1", `[]`))
}
