// internal/core/services/observers.go
package services

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ammerola/storefront-cart/internal/core/domain"
)

type subscription struct {
	id uint64
	fn func(domain.Cart)
}

// observerSet calls subscribers in subscription order.
type observerSet struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

func newObserverSet(logger *slog.Logger) *observerSet {
	return &observerSet{logger: logger}
}

func (o *observerSet) add(fn func(domain.Cart)) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observerSet) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, sub := range o.subs {
		if sub.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

func (o *observerSet) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *observerSet) publish(cart domain.Cart) {
	o.mu.Lock()
	subs := make([]subscription, len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, sub := range subs {
		o.deliver(sub, cart.Clone())
	}
}

func (o *observerSet) deliver(sub subscription, cart domain.Cart) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("cart observer panicked",
				slog.Uint64("subscription", sub.id),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	sub.fn(cart)
}
