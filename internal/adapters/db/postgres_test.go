package db_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/adapters/db"
)

func TestConfig_URL(t *testing.T) {
	cfg := db.DefaultConfig()
	cfg.Password = "p@ss:word"
	cfg.ConnectTimeout = 5 * time.Second

	u, err := url.Parse(cfg.URL())
	require.NoError(t, err)

	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/storefront_cart", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pass)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "5", u.Query().Get("connect_timeout"))
}
