// internal/core/ports/cart_service.go
package ports

import (
	"context"

	"github.com/ammerola/storefront-cart/internal/core/domain"
)

// CartService is the observer-facing surface of a cart store:
// the current cart, a subscription, and the three mutations.
type CartService interface {
	Cart() domain.Cart
	Subscribe(fn func(domain.Cart)) (unsubscribe func())
	AddProduct(ctx context.Context, productID int) error
	RemoveProduct(ctx context.Context, productID int) error
	SetProductAmount(ctx context.Context, productID, amount int) error
}

// CartSessions resolves the cart store of a session, opening it on first use.
type CartSessions interface {
	Open(ctx context.Context, sessionID string) (CartService, error)
}
