// internal/core/ports/catalog.go
package ports

import (
	"context"

	"github.com/ammerola/storefront-cart/internal/core/domain"
)

// CatalogService returns product metadata for a product id.
type CatalogService interface {
	GetProduct(ctx context.Context, productID int) (*domain.Product, error)
}

// StockService returns the current available amount for a product id.
// Implementations must not cache results.
type StockService interface {
	GetStock(ctx context.Context, productID int) (*domain.StockSnapshot, error)
}
