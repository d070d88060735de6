// internal/adapters/notify/log.go
package notify

import (
	"context"
	"log/slog"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// LogNotifier writes notifications to the application log
type LogNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) {
	level := slog.LevelInfo
	if note.Level == domain.LevelError {
		level = slog.LevelWarn
	}
	n.logger.LogAttrs(ctx, level, note.Message,
		slog.String("kind", string(note.Kind)),
		slog.Int("product_id", note.ProductID),
		slog.String("session_id", note.SessionID))
}
