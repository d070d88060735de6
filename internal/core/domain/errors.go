// internal/core/domain/errors.go
package domain

import "errors"

var (
	// ErrStockExceeded is returned when the requested amount is above the available stock.
	ErrStockExceeded = errors.New("requested quantity out of stock")

	// ErrProductNotFound is returned when the product is not in the cart.
	ErrProductNotFound = errors.New("product not in cart")

	// ErrTransientFailure wraps any catalog or stock read failure.
	ErrTransientFailure = errors.New("remote read failed")

	// ErrPersistence wraps a failed durable write.
	ErrPersistence = errors.New("cart could not be saved")
)
