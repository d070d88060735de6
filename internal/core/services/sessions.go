// internal/core/services/sessions.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ammerola/storefront-cart/internal/core/ports"
)

type session struct {
	store    *CartStore
	lastUsed time.Time
}

// SessionManager keeps one CartStore per session. Each session's cart is
// stored under its own key namespace of the shared durable store.
type SessionManager struct {
	catalog  ports.CatalogService
	stock    ports.StockService
	storage  ports.DurableStore
	notifier ports.Notifier
	opts     CartStoreOptions

	baseLogger *slog.Logger
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	opening  singleflight.Group
	now      func() time.Time
}

// Statically assert that *SessionManager implements the CartSessions interface.
var _ ports.CartSessions = (*SessionManager)(nil)

// NewSessionManager creates a session manager
func NewSessionManager(
	catalog ports.CatalogService,
	stock ports.StockService,
	storage ports.DurableStore,
	notifier ports.Notifier,
	logger *slog.Logger,
	opts CartStoreOptions,
) *SessionManager {
	return &SessionManager{
		catalog:    catalog,
		stock:      stock,
		storage:    storage,
		notifier:   notifier,
		opts:       opts,
		baseLogger: logger,
		logger:     logger.With(slog.String("service", "cart_sessions")),
		sessions:   make(map[string]*session),
		now:        time.Now,
	}
}

// Open returns the live store of sessionID, rehydrating it on first use.
func (m *SessionManager) Open(ctx context.Context, sessionID string) (ports.CartService, error) {
	store, err := m.open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (m *SessionManager) open(ctx context.Context, sessionID string) (*CartStore, error) {
	if store := m.lookup(sessionID); store != nil {
		return store, nil
	}

	v, err, _ := m.opening.Do(sessionID, func() (interface{}, error) {
		if store := m.lookup(sessionID); store != nil {
			return store, nil
		}

		opts := m.opts
		opts.SessionID = sessionID
		store, err := NewCartStore(ctx,
			m.catalog,
			m.stock,
			NewNamespacedStore(m.storage, SessionPrefix(sessionID)),
			m.notifier,
			m.baseLogger.With(slog.String("session_id", sessionID)),
			opts,
		)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sessions[sessionID] = &session{store: store, lastUsed: m.now()}
		m.mu.Unlock()

		m.logger.DebugContext(ctx, "cart session opened",
			slog.String("session_id", sessionID))
		return store, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open cart session %s: %w", sessionID, err)
	}
	return v.(*CartStore), nil
}

func (m *SessionManager) lookup(sessionID string) *CartStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	s.lastUsed = m.now()
	return s.store
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle drops sessions unused for maxIdle. Sessions with observers or an
// operation in flight are kept. Durable copies are untouched, so an evicted
// session rehydrates on its next Open.
func (m *SessionManager) EvictIdle(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.lastUsed.After(cutoff) || s.store.Observers() > 0 {
			continue
		}
		// A busy store still owns the session until its commit lands
		if !s.store.ops.TryLock() {
			continue
		}
		delete(m.sessions, id)
		s.store.ops.Unlock()
		evicted++
	}
	return evicted
}

// RunEviction evicts idle sessions every interval until ctx is done.
func (m *SessionManager) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				m.logger.InfoContext(ctx, "evicted idle cart sessions",
					slog.Int("count", n),
					slog.Int("remaining", m.Len()))
			}
		}
	}
}
