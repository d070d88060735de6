// internal/adapters/notify/queue.go
package notify

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/internal/workers"
)

// Enqueuer is the part of *asynq.Client the queue notifier needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier publishes notifications as cart:notification tasks.
// Enqueue failures are logged and never reach the cart operation.
type QueueNotifier struct {
	client Enqueuer
	queue  string
	logger *slog.Logger
}

var _ ports.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(client Enqueuer, queue string, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{
		client: client,
		queue:  queue,
		logger: logger.With(slog.String("component", "queue_notifier")),
	}
}

func (q *QueueNotifier) Notify(ctx context.Context, n domain.Notification) {
	var opts []asynq.Option
	if q.queue != "" {
		opts = append(opts, asynq.Queue(q.queue))
	}

	task, err := workers.NewNotificationTask(n, opts...)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to build notification task",
			slog.String("error", err.Error()))
		return
	}

	// The request may be finished by the time the broker answers
	info, err := q.client.EnqueueContext(context.WithoutCancel(ctx), task)
	if err != nil {
		q.logger.WarnContext(ctx, "failed to enqueue notification",
			slog.String("kind", string(n.Kind)),
			slog.String("error", err.Error()))
		return
	}

	q.logger.DebugContext(ctx, "notification enqueued",
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue))
}
