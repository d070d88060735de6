// internal/core/domain/cart.go
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CartItem is a single cart line: one product and the amount requested.
// JSON field names follow the storefront payload so carts saved by the
// browser client can be read back unchanged.
type CartItem struct {
	ProductID int             `json:"id"`
	Name      string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image"`
	Amount    int             `json:"amount"`
}

// Subtotal returns price * amount
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Amount)))
}

// NewCartItem builds a cart line from catalog metadata
func NewCartItem(p *Product, amount int) CartItem {
	return CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Amount:    amount,
	}
}

// Cart is an ordered list of distinct products. New products are appended;
// updates keep the position of existing lines.
type Cart struct {
	Items []CartItem `json:"items"`
}

// IndexOf returns the position of productID in the cart, or -1.
func (c Cart) IndexOf(productID int) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Find returns the line for productID.
func (c Cart) Find(productID int) (CartItem, bool) {
	if i := c.IndexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// Clone returns a deep copy; mutations on the copy never reach c.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Without returns a copy of the cart with productID removed.
func (c Cart) Without(productID int) Cart {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	return Cart{Items: items}
}

// Len returns the number of distinct products
func (c Cart) Len() int {
	return len(c.Items)
}

// Summary derives display totals from the cart.
func (c Cart) Summary() CartSummary {
	s := CartSummary{
		DistinctItems: len(c.Items),
		Subtotal:      decimal.Zero,
	}
	for _, item := range c.Items {
		s.ItemCount += item.Amount
		s.Subtotal = s.Subtotal.Add(item.Subtotal())
	}
	s.Total = s.Subtotal
	return s
}

// MarshalStorage encodes the cart the way it is kept in durable storage:
// a bare JSON array of lines.
func (c Cart) MarshalStorage() (string, error) {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart: %w", err)
	}
	return string(data), nil
}

// UnmarshalCart decodes a stored cart and sanitises it. Lines with a
// non-positive id or amount are dropped, and duplicate ids keep the first
// occurrence. The second return value is the number of dropped lines.
func UnmarshalCart(raw string) (Cart, int, error) {
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return Cart{}, 0, fmt.Errorf("failed to decode cart: %w", err)
	}

	seen := make(map[int]struct{}, len(items))
	clean := make([]CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID < 1 || item.Amount < 1 {
			continue
		}
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		clean = append(clean, item)
	}
	return Cart{Items: clean}, len(items) - len(clean), nil
}

// CartSummary holds totals derived from a cart; never persisted.
type CartSummary struct {
	ItemCount     int             `json:"item_count"`
	DistinctItems int             `json:"distinct_items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Total         decimal.Decimal `json:"total"`
}
