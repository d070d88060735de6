// internal/adapters/notify/recorder.go
package notify

import (
	"context"
	"sync"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

type recordedKey struct{}

// Recorded collects the notifications raised while serving one request
type Recorded struct {
	mu    sync.Mutex
	items []domain.Notification
}

// All returns the recorded notifications in the order they were raised
func (r *Recorded) All() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Recorded) add(n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// WithRecorder returns a context whose notifications are collected in the
// returned Recorded.
func WithRecorder(ctx context.Context) (context.Context, *Recorded) {
	rec := &Recorded{}
	return context.WithValue(ctx, recordedKey{}, rec), rec
}

// RecorderNotifier appends notifications to the Recorded carried by the
// context. Contexts without one are ignored.
type RecorderNotifier struct{}

var _ ports.Notifier = RecorderNotifier{}

func (RecorderNotifier) Notify(ctx context.Context, n domain.Notification) {
	if rec, ok := ctx.Value(recordedKey{}).(*Recorded); ok {
		rec.add(n)
	}
}
