// internal/core/services/sessions_test.go
package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-cart/internal/adapters/memory"
	"github.com/ammerola/storefront-cart/internal/adapters/notify"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/internal/core/services"
	"github.com/ammerola/storefront-cart/test/helpers"
	"github.com/ammerola/storefront-cart/test/mocks"
)

func newSessions(t *testing.T, storage ports.DurableStore, levels map[int]int) *services.SessionManager {
	t.Helper()
	f := newFixture(t, levels).serveRemote()
	return services.NewSessionManager(f.catalog, f.stock, storage,
		notify.RecorderNotifier{}, helpers.TestLogger(), services.CartStoreOptions{})
}

func TestSessionManager_OpenReturnsSameStore(t *testing.T) {
	ctx := context.Background()
	m := newSessions(t, memory.NewStore(), map[int]int{1: 5})

	a, err := m.Open(ctx, "alice")
	require.NoError(t, err)
	again, err := m.Open(ctx, "alice")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStore()
	m := newSessions(t, storage, map[int]int{1: 5, 2: 5})

	alice, err := m.Open(ctx, "alice")
	require.NoError(t, err)
	bob, err := m.Open(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.AddProduct(ctx, 1))
	require.NoError(t, bob.AddProduct(ctx, 2))
	require.NoError(t, bob.AddProduct(ctx, 2))

	assert.Equal(t, [][2]int{{1, 1}}, amounts(alice.Cart()))
	assert.Equal(t, [][2]int{{2, 2}}, amounts(bob.Cart()))
	assert.ElementsMatch(t, []string{"session:alice:cart:v1", "session:bob:cart:v1"}, storage.Keys())
}

func TestSessionManager_RehydratesFromNamespacedKey(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStore()
	raw, err := helpers.CreateTestCart([2]int{3, 2}).MarshalStorage()
	require.NoError(t, err)
	require.NoError(t, storage.SetItem(ctx, services.SessionPrefix("carol")+services.DefaultStorageKey, raw))

	m := newSessions(t, storage, nil)
	carol, err := m.Open(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{3, 2}}, amounts(carol.Cart()))

	dave, err := m.Open(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, dave.Cart().Items)
}

func TestSessionManager_ConcurrentOpen(t *testing.T) {
	ctx := context.Background()
	m := newSessions(t, memory.NewStore(), nil)

	const callers = 16
	stores := make([]ports.CartService, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Open(ctx, "shared")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}
	assert.Equal(t, 1, m.Len())
}

func TestSessionManager_OpenError(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockDurableStore(ctrl)
	storage.EXPECT().
		GetItem(gomock.Any(), "session:erin:cart:v1").
		Return("", errors.New("read timeout"))

	m := services.NewSessionManager(mocks.NewMockCatalogService(ctrl), mocks.NewMockStockService(ctrl),
		storage, notify.RecorderNotifier{}, helpers.TestLogger(), services.CartStoreOptions{})

	_, err := m.Open(context.Background(), "erin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open cart session erin")
	assert.Zero(t, m.Len(), "failed sessions are not kept")
}

func TestNamespacedStore(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewStore()
	ns := services.NewNamespacedStore(inner, services.SessionPrefix("s1"))

	require.NoError(t, ns.SetItem(ctx, "cart:v1", "[]"))
	assert.Equal(t, []string{"session:s1:cart:v1"}, inner.Keys())

	value, err := ns.GetItem(ctx, "cart:v1")
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	require.NoError(t, ns.RemoveItem(ctx, "cart:v1"))
	_, err = ns.GetItem(ctx, "cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}
