// internal/handlers/health_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/handlers"
	"github.com/ammerola/storefront-cart/internal/pkg/config"
	"github.com/ammerola/storefront-cart/test/helpers"
)

type fixedSessions int

func (f fixedSessions) Len() int { return int(f) }

func TestHealthHandler_Health(t *testing.T) {
	tr := helpers.SetupTestRedis(t)
	cfg := &config.Config{
		App:  config.AppConfig{Version: "1.2.3", Environment: "test"},
		Cart: config.CartConfig{StorageBackend: config.BackendRedis},
	}
	h := handlers.NewHealthHandler(fixedSessions(3), cfg, helpers.TestLogger(), handlers.RedisCheck(tr.Client))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, "redis", status.Storage)
	assert.Equal(t, 3, status.Sessions)
	assert.Contains(t, status.Services, "redis")
	assert.NotContains(t, status.Services, "database")

	tr.Server.Close()

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "unhealthy", status.Services["redis"].Status)
}

func TestHealthHandler_Readiness(t *testing.T) {
	tr := helpers.SetupTestRedis(t)
	cfg := &config.Config{Cart: config.CartConfig{StorageBackend: config.BackendRedis}}
	h := handlers.NewHealthHandler(nil, cfg, helpers.TestLogger(), handlers.RedisCheck(tr.Client))

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"details":{"redis":"ready"}}`, rec.Body.String())

	tr.Server.Close()

	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandler_OptionalChecksDoNotBlockReadiness(t *testing.T) {
	cfg := &config.Config{Cart: config.CartConfig{StorageBackend: config.BackendS3}}
	queueDown := handlers.HealthCheck{
		Name:     "asynq",
		Ping:     func(context.Context) error { return errors.New("connection refused") },
		Optional: true,
	}
	bucket := handlers.StorageCheck("s3", func(context.Context) error { return nil })
	h := handlers.NewHealthHandler(nil, cfg, helpers.TestLogger(), bucket, queueDown)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ready":true,"details":{"s3":"ready"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Services["s3"].Status)
	assert.Equal(t, "connection refused", status.Services["asynq"].Message)
}

func TestHealthHandler_MemoryBackendIsAlwaysReady(t *testing.T) {
	cfg := &config.Config{Cart: config.CartConfig{StorageBackend: config.BackendMemory}}
	h := handlers.NewHealthHandler(nil, cfg, helpers.TestLogger())

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
