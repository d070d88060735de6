// internal/core/services/cart_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

// DefaultStorageKey is the durable key the cart is kept under
const DefaultStorageKey = "cart:v1"

// CartStoreOptions tunes a CartStore
type CartStoreOptions struct {
	// StorageKey is the durable key holding the serialized cart.
	StorageKey string
	// RemoteTimeout bounds the catalog and stock reads of one operation.
	// Zero means the caller's context is the only bound.
	RemoteTimeout time.Duration
	// SessionID is stamped on notifications.
	SessionID string
}

// CartStore owns a single cart. Mutations are validated against a fresh
// stock read, written to durable storage, and only then made visible to
// readers and observers.
type CartStore struct {
	catalog  ports.CatalogService
	stock    ports.StockService
	storage  ports.DurableStore
	notifier ports.Notifier
	logger   *slog.Logger
	opts     CartStoreOptions

	// ops serializes operations from the first remote read to publication.
	ops sync.Mutex

	mu   sync.RWMutex
	cart domain.Cart

	observers *observerSet
}

// Statically assert that *CartStore implements the CartService interface.
var _ ports.CartService = (*CartStore)(nil)

// NewCartStore creates a cart store and rehydrates it from durable storage.
// A missing or unreadable stored value yields an empty cart; a failing
// storage read is returned as an error.
func NewCartStore(
	ctx context.Context,
	catalog ports.CatalogService,
	stock ports.StockService,
	storage ports.DurableStore,
	notifier ports.Notifier,
	logger *slog.Logger,
	opts CartStoreOptions,
) (*CartStore, error) {
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}

	logger = logger.With(slog.String("service", "cart"))
	s := &CartStore{
		catalog:   catalog,
		stock:     stock,
		storage:   storage,
		notifier:  notifier,
		logger:    logger,
		opts:      opts,
		observers: newObserverSet(logger),
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CartStore) load(ctx context.Context) error {
	raw, err := s.storage.GetItem(ctx, s.opts.StorageKey)
	if errors.Is(err, ports.ErrKeyNotFound) {
		s.logger.DebugContext(ctx, "no stored cart, starting empty",
			slog.String("key", s.opts.StorageKey))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stored cart: %w", err)
	}

	cart, dropped, err := domain.UnmarshalCart(raw)
	if err != nil {
		// The stored value stays untouched until the next successful mutation.
		s.logger.WarnContext(ctx, "stored cart is unreadable, starting empty",
			slog.String("key", s.opts.StorageKey),
			slog.String("error", err.Error()))
		return nil
	}
	if dropped > 0 {
		s.logger.WarnContext(ctx, "dropped invalid lines from stored cart",
			slog.String("key", s.opts.StorageKey),
			slog.Int("dropped", dropped))
	}

	s.cart = cart
	s.logger.InfoContext(ctx, "cart rehydrated",
		slog.Int("items", cart.Len()))
	return nil
}

// Cart returns a copy of the current cart
func (s *CartStore) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Subscribe registers fn to receive the cart after every committed mutation.
func (s *CartStore) Subscribe(fn func(domain.Cart)) func() {
	return s.observers.add(fn)
}

// Observers returns the number of registered observers
func (s *CartStore) Observers() int {
	return s.observers.len()
}

// AddProduct adds one unit of productID, appending the product when it is
// not in the cart yet. The add is rejected when it would exceed stock.
func (s *CartStore) AddProduct(ctx context.Context, productID int) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	product, stock, err := s.fetchProductAndStock(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read product for add",
			slog.Int("product_id", productID),
			slog.String("error", err.Error()))
		s.notify(ctx, domain.KindAddFailed, productID)
		return fmt.Errorf("add product %d: %w: %w", productID, domain.ErrTransientFailure, err)
	}

	next := s.Cart()
	amount := 1
	if i := next.IndexOf(productID); i >= 0 {
		amount = next.Items[i].Amount + 1
		next.Items[i].Amount = amount
	} else {
		item := domain.NewCartItem(product, amount)
		item.ProductID = productID
		next.Items = append(next.Items, item)
	}

	if !stock.Allows(amount) {
		s.notify(ctx, domain.KindStockExceeded, productID)
		return fmt.Errorf("add product %d: requested %d, available %d: %w",
			productID, amount, stock.Amount, domain.ErrStockExceeded)
	}

	if err := s.commit(ctx, next); err != nil {
		s.notify(ctx, domain.KindAddFailed, productID)
		return fmt.Errorf("add product %d: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "product added to cart",
		slog.Int("product_id", productID),
		slog.Int("amount", amount))
	return nil
}

// RemoveProduct removes the line for productID.
func (s *CartStore) RemoveProduct(ctx context.Context, productID int) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	current := s.Cart()
	if current.IndexOf(productID) < 0 {
		s.notify(ctx, domain.KindRemoveFailed, productID)
		return fmt.Errorf("remove product %d: %w", productID, domain.ErrProductNotFound)
	}

	if err := s.commit(ctx, current.Without(productID)); err != nil {
		s.notify(ctx, domain.KindRemoveFailed, productID)
		return fmt.Errorf("remove product %d: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "product removed from cart",
		slog.Int("product_id", productID))
	return nil
}

// SetProductAmount sets the amount of an existing line. Amounts of zero or
// less are ignored.
func (s *CartStore) SetProductAmount(ctx context.Context, productID, amount int) error {
	if amount <= 0 {
		return nil
	}

	s.ops.Lock()
	defer s.ops.Unlock()

	stock, err := s.fetchStock(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read stock for update",
			slog.Int("product_id", productID),
			slog.String("error", err.Error()))
		s.notify(ctx, domain.KindUpdateFailed, productID)
		return fmt.Errorf("update product %d: %w: %w", productID, domain.ErrTransientFailure, err)
	}

	if !stock.Allows(amount) {
		s.notify(ctx, domain.KindStockExceeded, productID)
		return fmt.Errorf("update product %d: requested %d, available %d: %w",
			productID, amount, stock.Amount, domain.ErrStockExceeded)
	}

	next := s.Cart()
	i := next.IndexOf(productID)
	if i < 0 {
		s.notify(ctx, domain.KindUpdateFailed, productID)
		return fmt.Errorf("update product %d: %w", productID, domain.ErrProductNotFound)
	}
	next.Items[i].Amount = amount

	if err := s.commit(ctx, next); err != nil {
		s.notify(ctx, domain.KindUpdateFailed, productID)
		return fmt.Errorf("update product %d: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "product amount updated",
		slog.Int("product_id", productID),
		slog.Int("amount", amount))
	return nil
}

// commit writes next to durable storage, then swaps it in and publishes it.
// Nothing changes when the write fails.
func (s *CartStore) commit(ctx context.Context, next domain.Cart) error {
	raw, err := next.MarshalStorage()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	if err := s.storage.SetItem(ctx, s.opts.StorageKey, raw); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist cart",
			slog.String("key", s.opts.StorageKey),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	s.mu.Lock()
	s.cart = next
	s.mu.Unlock()

	s.observers.publish(next)
	return nil
}

func (s *CartStore) fetchProductAndStock(ctx context.Context, productID int) (*domain.Product, *domain.StockSnapshot, error) {
	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	var (
		product *domain.Product
		stock   *domain.StockSnapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.catalog.GetProduct(gctx, productID)
		if err != nil {
			return fmt.Errorf("get product: %w", err)
		}
		if p == nil {
			return errors.New("get product: empty response")
		}
		product = p
		return nil
	})
	g.Go(func() error {
		st, err := s.stock.GetStock(gctx, productID)
		if err != nil {
			return fmt.Errorf("get stock: %w", err)
		}
		if st == nil {
			return errors.New("get stock: empty response")
		}
		stock = st
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return product, stock, nil
}

func (s *CartStore) fetchStock(ctx context.Context, productID int) (*domain.StockSnapshot, error) {
	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	if stock == nil {
		return nil, errors.New("get stock: empty response")
	}
	return stock, nil
}

func (s *CartStore) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RemoteTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.RemoteTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *CartStore) notify(ctx context.Context, kind domain.NotificationKind, productID int) {
	n := domain.NewErrorNotification(kind, productID)
	n.SessionID = s.opts.SessionID
	s.notifier.Notify(ctx, n)
}
