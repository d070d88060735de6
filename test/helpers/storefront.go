// test/helpers/storefront.go
package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// FakeStorefront serves /products/{id} and /stock/{id} from memory
type FakeStorefront struct {
	*httptest.Server

	mu        sync.Mutex
	stock     map[int]int
	failStock bool
	delay     time.Duration
	calls     map[string]int
}

// NewFakeStorefront starts a fake storefront API with the given stock levels.
// Every product in stock is listed in the catalog.
func NewFakeStorefront(t *testing.T, stock map[int]int) *FakeStorefront {
	t.Helper()

	f := &FakeStorefront{stock: make(map[int]int), calls: make(map[string]int)}
	for id, amount := range stock {
		f.stock[id] = amount
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", f.handleProduct)
	mux.HandleFunc("GET /stock/{id}", f.handleStock)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// SetStock changes the available amount of productID
func (f *FakeStorefront) SetStock(productID, amount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[productID] = amount
}

// FailStock makes every stock read answer 500
func (f *FakeStorefront) FailStock(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStock = fail
}

// SetDelay delays every answer
func (f *FakeStorefront) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// Calls returns how often path was requested
func (f *FakeStorefront) Calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *FakeStorefront) lookup(r *http.Request) (id, amount int, known, failStock bool, delay time.Duration) {
	id, err := strconv.Atoi(r.PathValue("id"))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URL.Path]++
	if err != nil {
		return 0, 0, false, f.failStock, f.delay
	}
	amount, known = f.stock[id]
	return id, amount, known, f.failStock, f.delay
}

func (f *FakeStorefront) wait(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-r.Context().Done():
		return false
	}
}

func (f *FakeStorefront) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, _, known, _, delay := f.lookup(r)
	if !f.wait(r, delay) {
		return
	}
	if !known {
		http.NotFound(w, r)
		return
	}

	p := CreateTestProduct(id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":    p.ID,
		"title": p.Name,
		"price": p.Price,
		"image": p.ImageURL,
	})
}

func (f *FakeStorefront) handleStock(w http.ResponseWriter, r *http.Request) {
	id, amount, known, failStock, delay := f.lookup(r)
	if !f.wait(r, delay) {
		return
	}
	if failStock {
		http.Error(w, "stock service unavailable", http.StatusInternalServerError)
		return
	}
	if !known {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"id": id, "amount": amount})
}
