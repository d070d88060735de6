//go:build integration
// +build integration

package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/adapters/db"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/test/helpers"
)

func TestKVStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := helpers.SetupTestDB(t)
	defer testDB.Database.Close()

	ctx := context.Background()
	store := db.NewKVStore(testDB.Database.SQL(), db.DefaultCartTable, helpers.TestLogger())

	t.Run("round_trip", func(t *testing.T) {
		_, err := store.GetItem(ctx, "session:it:cart:v1")
		assert.ErrorIs(t, err, ports.ErrKeyNotFound)

		require.NoError(t, store.SetItem(ctx, "session:it:cart:v1", `[{"id":1,"amount":1}]`))
		require.NoError(t, store.SetItem(ctx, "session:it:cart:v1", `[{"id":1,"amount":2}]`))

		value, err := store.GetItem(ctx, "session:it:cart:v1")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":1,"amount":2}]`, value)

		require.NoError(t, store.RemoveItem(ctx, "session:it:cart:v1"))
		_, err = store.GetItem(ctx, "session:it:cart:v1")
		assert.ErrorIs(t, err, ports.ErrKeyNotFound)
	})

	t.Run("purges_only_stale_rows", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, "session:old:cart:v1", `[]`))
		_, err := testDB.Database.SQL().ExecContext(ctx,
			"UPDATE cart_storage SET updated_at = NOW() - INTERVAL '40 days' WHERE storage_key = $1",
			"session:old:cart:v1")
		require.NoError(t, err)
		require.NoError(t, store.SetItem(ctx, "session:new:cart:v1", `[]`))

		n, err := store.PurgeOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		_, err = store.GetItem(ctx, "session:old:cart:v1")
		assert.ErrorIs(t, err, ports.ErrKeyNotFound)
		_, err = store.GetItem(ctx, "session:new:cart:v1")
		assert.NoError(t, err)
	})

	t.Run("health_reports_pool", func(t *testing.T) {
		health := testDB.Database.Health(ctx)
		assert.Equal(t, "healthy", health["status"])
	})
}
