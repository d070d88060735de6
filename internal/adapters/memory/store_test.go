package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/adapters/memory"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, err := store.GetItem(ctx, "cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)

	require.NoError(t, store.SetItem(ctx, "cart:v1", `[]`))
	require.NoError(t, store.SetItem(ctx, "cart:v1", `[{"id":1,"amount":1}]`))

	value, err := store.GetItem(ctx, "cart:v1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":1}]`, value)
	assert.Equal(t, []string{"cart:v1"}, store.Keys())

	require.NoError(t, store.RemoveItem(ctx, "cart:v1"))
	_, err = store.GetItem(ctx, "cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cart.json")

	store, err := memory.NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetItem(ctx, "cart:v1", `[{"id":2,"amount":3}]`))
	require.NoError(t, store.SetItem(ctx, "other", "x"))
	require.NoError(t, store.RemoveItem(ctx, "other"))

	reopened, err := memory.NewFileStore(path)
	require.NoError(t, err)

	value, err := reopened.GetItem(ctx, "cart:v1")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2,"amount":3}]`, value)

	_, err = reopened.GetItem(ctx, "other")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}

func TestFileStore_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := memory.NewFileStore(path)
	assert.Error(t, err)
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	store, err := memory.NewFileStore(path)
	require.NoError(t, err)

	_, err = store.GetItem(context.Background(), "cart:v1")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
}
