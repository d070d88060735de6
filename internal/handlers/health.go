// internal/handlers/health.go
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-cart/internal/adapters/db"
	"github.com/ammerola/storefront-cart/internal/pkg/config"
)

// SessionCounter reports the number of live cart sessions
type SessionCounter interface {
	Len() int
}

// HealthCheck probes one dependency of the deployment
type HealthCheck struct {
	Name    string
	Ping    func(ctx context.Context) error
	Details func(ctx context.Context) map[string]any
	// Optional checks degrade /health but never fail /ready.
	Optional bool
}

// DatabaseCheck probes the postgres pool backing cart storage
func DatabaseCheck(database *db.Database) HealthCheck {
	return HealthCheck{
		Name:    "database",
		Ping:    database.Ping,
		Details: database.Health,
	}
}

// RedisCheck probes the redis client used for carts and the catalog cache
func RedisCheck(client redis.UniversalClient) HealthCheck {
	return HealthCheck{
		Name: "redis",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		Details: func(context.Context) map[string]any {
			stats := client.PoolStats()
			return map[string]any{
				"total_conns": stats.TotalConns,
				"idle_conns":  stats.IdleConns,
				"stale_conns": stats.StaleConns,
			}
		},
	}
}

// AsynqCheck reports the notification queues. Carts keep working when
// the queue is down, so the check is optional.
func AsynqCheck(inspector *asynq.Inspector) HealthCheck {
	return HealthCheck{
		Name: "asynq",
		Ping: func(context.Context) error {
			_, err := inspector.Queues()
			return err
		},
		Details: func(context.Context) map[string]any {
			details := map[string]any{}
			queues, err := inspector.Queues()
			if err != nil {
				return details
			}
			for _, queue := range queues {
				if q, err := inspector.GetQueueInfo(queue); err == nil {
					details[queue] = map[string]any{
						"pending": q.Pending,
						"active":  q.Active,
						"retry":   q.Retry,
						"failed":  q.Failed,
					}
				}
			}
			return details
		},
		Optional: true,
	}
}

// StorageCheck probes a durable cart store that can reach its backend itself
func StorageCheck(name string, ping func(ctx context.Context) error) HealthCheck {
	return HealthCheck{Name: name, Ping: ping}
}

// HealthHandler serves liveness and readiness for the configured deployment
type HealthHandler struct {
	checks    []HealthCheck
	sessions  SessionCounter
	config    *config.Config
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(sessions SessionCounter, cfg *config.Config, logger *slog.Logger, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:    checks,
		sessions:  sessions,
		config:    cfg,
		logger:    logger.With(slog.String("handler", "health")),
		startTime: time.Now(),
	}
}

// HealthStatus represents the health status of the application
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Storage     string                 `json:"storage"`
	Sessions    int                    `json:"sessions"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo represents the status of a service dependency
type ServiceInfo struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	ResponseTime string         `json:"response_time,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// SystemInfo represents process level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
}

// Health handles the /health endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := HealthStatus{
		Status:      "healthy",
		Version:     h.config.App.Version,
		Environment: h.config.App.Environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Storage:     h.config.Cart.StorageBackend,
		Services:    make(map[string]ServiceInfo, len(h.checks)),
		System:      systemInfo(),
	}
	if h.sessions != nil {
		health.Sessions = h.sessions.Len()
	}

	for _, check := range h.checks {
		info := h.probe(ctx, check)
		health.Services[check.Name] = info
		if info.Status != "healthy" {
			health.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	h.respond(ctx, w, statusCode, health)
}

// Readiness handles the /ready endpoint
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ready := true
	details := make(map[string]string)
	for _, check := range h.checks {
		if check.Optional {
			continue
		}
		if err := check.Ping(ctx); err != nil {
			ready = false
			details[check.Name] = "not ready"
			continue
		}
		details[check.Name] = "ready"
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	h.respond(ctx, w, statusCode, map[string]any{
		"ready":   ready,
		"details": details,
	})
}

func (h *HealthHandler) probe(ctx context.Context, check HealthCheck) ServiceInfo {
	start := time.Now()
	if err := check.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed",
			slog.String("dependency", check.Name),
			slog.String("error", err.Error()))
		return ServiceInfo{Status: "unhealthy", Message: err.Error()}
	}

	info := ServiceInfo{Status: "healthy"}
	if check.Details != nil {
		info.Details = check.Details(ctx)
	}
	info.ResponseTime = time.Since(start).String()
	return info
}

func (h *HealthHandler) respond(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode health response",
			slog.String("error", err.Error()))
	}
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemoryAllocMB: mem.Alloc / 1024 / 1024,
	}
}
