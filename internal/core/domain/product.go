// internal/core/domain/product.go
package domain

import "github.com/shopspring/decimal"

// Product is catalog metadata for a single product
type Product struct {
	ID       int             `json:"id"`
	Name     string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image"`
}

// StockSnapshot is the available amount of a product at read time.
// It is fetched for every mutation and never cached.
type StockSnapshot struct {
	ProductID int `json:"id"`
	Amount    int `json:"amount"`
}

// Allows reports whether amount units can be held in a cart.
func (s StockSnapshot) Allows(amount int) bool {
	return amount <= s.Amount
}
