// test/benchmarks/helpers.go
package benchmarks

import (
	"context"
	"fmt"
	"sync"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/test/helpers"
)

// staticStorefront answers catalog and stock reads from memory without I/O
type staticStorefront struct {
	mu    sync.RWMutex
	stock map[int]int
}

func newStaticStorefront(products, amount int) *staticStorefront {
	s := &staticStorefront{stock: make(map[int]int, products)}
	for id := 1; id <= products; id++ {
		s.stock[id] = amount
	}
	return s
}

func (s *staticStorefront) GetProduct(_ context.Context, productID int) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.stock[productID]; !ok {
		return nil, fmt.Errorf("product %d not listed", productID)
	}
	return helpers.CreateTestProduct(productID), nil
}

func (s *staticStorefront) GetStock(_ context.Context, productID int) (*domain.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	amount, ok := s.stock[productID]
	if !ok {
		return nil, fmt.Errorf("product %d not listed", productID)
	}
	return &domain.StockSnapshot{ProductID: productID, Amount: amount}, nil
}

// createLargeCart builds a cart of n distinct lines
func createLargeCart(n int) domain.Cart {
	lines := make([][2]int, 0, n)
	for id := 1; id <= n; id++ {
		lines = append(lines, [2]int{id, id%5 + 1})
	}
	return helpers.CreateTestCart(lines...)
}
