// cmd/mockapi/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/storefront-cart/internal/handlers/middleware"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

// Product is a catalog entry as served by the storefront API
type Product struct {
	ID    int             `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// Stock is the available amount of a product
type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

// Fixture is the document loaded with -fixture
type Fixture struct {
	Products []Product `json:"products"`
	Stock    []Stock   `json:"stock"`
}

func sampleFixture() *Fixture {
	return &Fixture{
		Products: []Product{
			{1, "Fjallraven Foldsack No. 1 Backpack", decimal.RequireFromString("109.95"), "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg"},
			{2, "Mens Casual Premium Slim Fit T-Shirts", decimal.RequireFromString("22.30"), "https://fakestoreapi.com/img/71-3HjGNDUL._AC_SY879._SX._UX._SY._UY_.jpg"},
			{3, "Mens Cotton Jacket", decimal.RequireFromString("55.99"), "https://fakestoreapi.com/img/71li-ujtlUL._AC_UX679_.jpg"},
			{4, "Mens Casual Slim Fit", decimal.RequireFromString("15.99"), "https://fakestoreapi.com/img/71YXzeOuslL._AC_UY879_.jpg"},
		},
		Stock: []Stock{
			{1, 3},
			{2, 5},
			{3, 2},
			{4, 1},
		},
	}
}

func loadFixture(path string) (*Fixture, error) {
	if path == "" {
		return sampleFixture(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return &f, nil
}

type storefront struct {
	products map[int]Product
	stock    map[int]Stock
	delay    time.Duration
	logger   *slog.Logger
}

func newStorefront(f *Fixture, delay time.Duration, logger *slog.Logger) *storefront {
	s := &storefront{
		products: make(map[int]Product, len(f.Products)),
		stock:    make(map[int]Stock, len(f.Stock)),
		delay:    delay,
		logger:   logger.With(slog.String("component", "storefront")),
	}
	for _, p := range f.Products {
		s.products[p.ID] = p
	}
	for _, st := range f.Stock {
		s.stock[st.ID] = st
	}
	return s
}

func (s *storefront) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", s.handleProduct)
	mux.HandleFunc("GET /stock/{id}", s.handleStock)
	return mux
}

func (s *storefront) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, ok := s.products[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.respond(w, p)
}

func (s *storefront) handleStock(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	st, ok := s.stock[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.respond(w, st)
}

func (s *storefront) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return 0, false
		}
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *storefront) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func main() {
	var (
		addr     = flag.String("addr", ":3333", "Listen address")
		fixture  = flag.String("fixture", "", "JSON file with products and stock (defaults to a sample catalog)")
		delay    = flag.Duration("delay", 0, "Delay added to every response")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	appLogger := logger.SetupLogger(*logLevel, "text", "storefront-mockapi", "", "development")
	slogger := appLogger.Logger

	f, err := loadFixture(*fixture)
	if err != nil {
		slogger.Error("failed to load fixture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           middleware.Logger(appLogger)(newStorefront(f, *delay, slogger).routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slogger.Info("mock storefront listening",
			slog.String("address", *addr),
			slog.Int("products", len(f.Products)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slogger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
}
