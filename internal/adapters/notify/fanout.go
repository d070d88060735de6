// internal/adapters/notify/fanout.go
package notify

import (
	"context"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// Fanout delivers each notification to every notifier in order
type Fanout []ports.Notifier

var _ ports.Notifier = Fanout(nil)

func NewFanout(notifiers ...ports.Notifier) Fanout {
	out := make(Fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (f Fanout) Notify(ctx context.Context, n domain.Notification) {
	for _, notifier := range f {
		notifier.Notify(ctx, n)
	}
}
