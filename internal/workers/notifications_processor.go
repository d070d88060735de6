// internal/workers/notifications_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

const counterRetention = 48 * time.Hour

// NotificationProcessor records cart notifications published through the
// task queue as daily per-kind counters.
type NotificationProcessor struct {
	cache  ports.CacheRepository
	logger *slog.Logger
}

// NewNotificationProcessor creates a new notification processor
func NewNotificationProcessor(cache ports.CacheRepository, logger *slog.Logger) *NotificationProcessor {
	return &NotificationProcessor{
		cache:  cache,
		logger: logger.With(slog.String("processor", "notification")),
	}
}

// CounterKey returns the counter a notification of kind at t is counted under
func CounterKey(kind string, t time.Time) string {
	return fmt.Sprintf("notifications:%s:%s", kind, t.UTC().Format("2006-01-02"))
}

// ProcessNotification handles a cart:notification task
func (p *NotificationProcessor) ProcessNotification(ctx context.Context, t *asynq.Task) error {
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Malformed payloads never succeed on retry
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	n := payload.Notification
	p.logger.InfoContext(ctx, "cart notification",
		slog.String("kind", string(n.Kind)),
		slog.String("level", string(n.Level)),
		slog.Int("product_id", n.ProductID),
		slog.String("session_id", n.SessionID))

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	key := CounterKey(string(n.Kind), at)

	if _, err := p.cache.Count(ctx, key, counterRetention); err != nil {
		return fmt.Errorf("failed to count %s: %w", key, err)
	}
	return nil
}
