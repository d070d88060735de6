package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-cart/internal/adapters/catalog"
	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/test/helpers"
	"github.com/ammerola/storefront-cart/test/mocks"
)

func TestCachedCatalog_ReadThrough(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mocks.NewMockCatalogService(ctrl)

	redis := helpers.SetupTestRedis(t)
	cache := redis_a.NewCache(redis.Client, time.Minute, helpers.TestLogger())
	cached := catalog.NewCachedCatalog(next, cache, time.Minute, helpers.TestLogger())

	next.EXPECT().
		GetProduct(gomock.Any(), 3).
		Return(helpers.CreateTestProduct(3), nil).
		Times(1)

	first, err := cached.GetProduct(ctx, 3)
	require.NoError(t, err)
	second, err := cached.GetProduct(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.True(t, first.Price.Equal(second.Price))
	assert.True(t, redis.Server.Exists(catalog.ProductKey(3)))
	assert.Equal(t, time.Minute, redis.Server.TTL(catalog.ProductKey(3)))
}

func TestCachedCatalog_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mocks.NewMockCatalogService(ctrl)

	redis := helpers.SetupTestRedis(t)
	cached := catalog.NewCachedCatalog(next,
		redis_a.NewCache(redis.Client, time.Minute, helpers.TestLogger()),
		time.Minute, helpers.TestLogger())

	gomock.InOrder(
		next.EXPECT().GetProduct(gomock.Any(), 4).Return(nil, errors.New("boom")),
		next.EXPECT().GetProduct(gomock.Any(), 4).Return(helpers.CreateTestProduct(4), nil),
	)

	_, err := cached.GetProduct(ctx, 4)
	require.Error(t, err)

	p, err := cached.GetProduct(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.ID)
}

func TestCachedCatalog_CacheDownFallsBack(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mocks.NewMockCatalogService(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	cache.EXPECT().Get(gomock.Any(), "catalog:product:5", gomock.Any()).Return(errors.New("connection refused"))
	cache.EXPECT().Set(gomock.Any(), "catalog:product:5", gomock.Any(), time.Minute).Return(errors.New("connection refused"))
	next.EXPECT().GetProduct(gomock.Any(), 5).Return(helpers.CreateTestProduct(5), nil)

	p, err := catalog.NewCachedCatalog(next, cache, time.Minute, helpers.TestLogger()).GetProduct(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.ID)
}

func TestCachedCatalog_CollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mocks.NewMockCatalogService(ctrl)

	redis := helpers.SetupTestRedis(t)
	cached := catalog.NewCachedCatalog(next,
		redis_a.NewCache(redis.Client, time.Minute, helpers.TestLogger()),
		time.Minute, helpers.TestLogger())

	release := make(chan struct{})
	next.EXPECT().
		GetProduct(gomock.Any(), 6).
		DoAndReturn(func(ctx context.Context, id int) (*domain.Product, error) {
			<-release
			return helpers.CreateTestProduct(id), nil
		}).
		MinTimes(1).
		MaxTimes(2)

	var wg sync.WaitGroup
	results := make([]*domain.Product, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cached.GetProduct(ctx, 6)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, p := range results {
		require.NotNil(t, p, "result %d", i)
		assert.Equal(t, 6, p.ID)
	}
}
