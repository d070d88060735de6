// internal/workers/tasks.go
package workers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/storefront-cart/internal/core/domain"
)

const (
	TypeCartNotification = "cart:notification"
	TypePurgeStaleCarts  = "cart:purge_stale"
)

// NotificationPayload is the payload of a cart:notification task
type NotificationPayload struct {
	Notification domain.Notification `json:"notification"`
}

// PurgePayload is the payload of a cart:purge_stale task. A zero
// OlderThan means the processor's configured retention.
type PurgePayload struct {
	OlderThan time.Duration `json:"older_than,omitempty"`
}

// NewNotificationTask builds a task carrying n
func NewNotificationTask(n domain.Notification, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(NotificationPayload{Notification: n})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification payload: %w", err)
	}
	return asynq.NewTask(TypeCartNotification, b, opts...), nil
}

// NewPurgeTask builds a task that purges carts not written for olderThan
func NewPurgeTask(olderThan time.Duration) (*asynq.Task, error) {
	b, err := json.Marshal(PurgePayload{OlderThan: olderThan})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purge payload: %w", err)
	}
	return asynq.NewTask(TypePurgeStaleCarts, b, asynq.MaxRetry(1)), nil
}
