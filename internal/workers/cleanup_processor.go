// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// StalePurger deletes stored carts not written since cutoff
type StalePurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupProcessor handles cleanup tasks
type CleanupProcessor struct {
	purger    StalePurger
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(purger StalePurger, retention time.Duration, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		purger:    purger,
		retention: retention,
		logger:    logger.With(slog.String("processor", "cleanup")),
		now:       time.Now,
	}
}

// PurgeStaleCarts handles a cart:purge_stale task
func (p *CleanupProcessor) PurgeStaleCarts(ctx context.Context, t *asynq.Task) error {
	var payload PurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = p.retention
	}
	if olderThan <= 0 {
		return fmt.Errorf("no retention configured: %w", asynq.SkipRetry)
	}

	cutoff := p.now().Add(-olderThan)
	p.logger.InfoContext(ctx, "purging stale carts",
		slog.Time("cutoff", cutoff))

	deleted, err := p.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge stale carts: %w", err)
	}

	p.logger.InfoContext(ctx, "stale carts purged",
		slog.Int64("rows_deleted", deleted))
	return nil
}
