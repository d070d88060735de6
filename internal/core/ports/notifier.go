// internal/core/ports/notifier.go
package ports

import (
	"context"

	"github.com/ammerola/storefront-cart/internal/core/domain"
)

// Notifier delivers user-facing notifications. Delivery is best effort;
// implementations report problems through their own logging.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
