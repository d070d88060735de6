// internal/handlers/cart.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ammerola/storefront-cart/internal/adapters/notify"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

const maxBodyBytes = 1 << 20

// CartView is the cart as returned to clients
type CartView struct {
	Items   []domain.CartItem  `json:"items"`
	Summary domain.CartSummary `json:"summary"`
}

// MutationResponse is returned by every cart mutation
type MutationResponse struct {
	CartView
	Notifications []domain.Notification `json:"notifications"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error         string                `json:"error"`
	Notifications []domain.Notification `json:"notifications,omitempty"`
}

// AddItemRequest is the body of POST /api/v1/cart/items
type AddItemRequest struct {
	ProductID int `json:"product_id"`
}

// SetAmountRequest is the body of PUT /api/v1/cart/items/{productId}
type SetAmountRequest struct {
	Amount int `json:"amount"`
}

// NewCartView builds the client view of c
func NewCartView(c domain.Cart) CartView {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartView{Items: items, Summary: c.Summary()}
}

// CartHandler handles cart HTTP requests
type CartHandler struct {
	sessions  ports.CartSessions
	logger    *slog.Logger
	heartbeat time.Duration

	closing   chan struct{}
	closeOnce sync.Once
}

// NewCartHandler creates a new cart handler
func NewCartHandler(sessions ports.CartSessions, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions:  sessions,
		logger:    logger.With(slog.String("handler", "cart")),
		heartbeat: 15 * time.Second,
		closing:   make(chan struct{}),
	}
}

// Shutdown ends every open event stream
func (h *CartHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// WithHeartbeat sets the keep-alive interval of the event stream
func (h *CartHandler) WithHeartbeat(d time.Duration) *CartHandler {
	h.heartbeat = d
	return h
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.openSession(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, NewCartView(store.Cart()))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if req.ProductID < 1 {
		h.respondError(w, http.StatusBadRequest, "product_id must be a positive integer", nil)
		return
	}

	store, ok := h.openSession(w, r)
	if !ok {
		return
	}

	ctx, rec := notify.WithRecorder(r.Context())
	err := store.AddProduct(ctx, req.ProductID)
	h.respondMutation(w, r, store, rec, err)
}

// SetItemAmount handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) SetItemAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID", nil)
		return
	}

	var req SetAmountRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	store, ok := h.openSession(w, r)
	if !ok {
		return
	}

	ctx, rec := notify.WithRecorder(r.Context())
	err := store.SetProductAmount(ctx, productID, req.Amount)
	h.respondMutation(w, r, store, rec, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(r)
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid product ID", nil)
		return
	}

	store, ok := h.openSession(w, r)
	if !ok {
		return
	}

	ctx, rec := notify.WithRecorder(r.Context())
	err := store.RemoveProduct(ctx, productID)
	h.respondMutation(w, r, store, rec, err)
}

// Events handles GET /api/v1/cart/events. The stream opens with the
// current cart and then carries one event per committed mutation. A slow
// client only ever receives the latest cart.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	store, ok := h.openSession(w, r)
	if !ok {
		return
	}

	updates := make(chan domain.Cart, 1)
	unsubscribe := store.Subscribe(func(c domain.Cart) {
		for {
			select {
			case updates <- c:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "cart", NewCartView(store.Cart())); err != nil {
		return
	}
	flusher.Flush()

	h.logger.DebugContext(ctx, "cart event stream opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.DebugContext(ctx, "cart event stream closed")
			return
		case <-h.closing:
			return
		case c := <-updates:
			if err := writeEvent(w, "cart", NewCartView(c)); err != nil {
				h.logger.DebugContext(ctx, "cart event stream write failed",
					slog.String("error", err.Error()))
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *CartHandler) openSession(w http.ResponseWriter, r *http.Request) (ports.CartService, bool) {
	ctx := r.Context()
	sessionID := logger.SessionID(ctx)
	if sessionID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing session id", nil)
		return nil, false
	}

	store, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open cart session",
			slog.String("error", err.Error()))
		h.respondError(w, http.StatusServiceUnavailable, "Cart storage unavailable", nil)
		return nil, false
	}
	return store, true
}

func (h *CartHandler) respondMutation(w http.ResponseWriter, r *http.Request, store ports.CartService, rec *notify.Recorded, err error) {
	notes := rec.All()
	if notes == nil {
		notes = []domain.Notification{}
	}

	if err != nil {
		status := StatusForError(err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "cart operation failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()))
		h.respondError(w, status, err.Error(), notes)
		return
	}

	h.respondJSON(w, http.StatusOK, MutationResponse{
		CartView:      NewCartView(store.Cart()),
		Notifications: notes,
	})
}

// StatusForError maps a cart error to its HTTP status
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrStockExceeded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTransientFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseProductID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("productId"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (h *CartHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *CartHandler) respondError(w http.ResponseWriter, status int, message string, notes []domain.Notification) {
	h.respondJSON(w, status, ErrorResponse{Error: message, Notifications: notes})
}
