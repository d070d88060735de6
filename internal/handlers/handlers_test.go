// internal/handlers/handlers_test.go
package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/ammerola/storefront-cart/internal/adapters/memory"
	"github.com/ammerola/storefront-cart/internal/adapters/notify"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/services"
	"github.com/ammerola/storefront-cart/internal/handlers"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
	"github.com/ammerola/storefront-cart/test/helpers"
	"github.com/ammerola/storefront-cart/test/mocks"
)

type testServer struct {
	mux      *http.ServeMux
	sessions *services.SessionManager
	storage  *memory.Store
	catalog  *mocks.MockCatalogService
	stock    *mocks.MockStockService

	mu     sync.Mutex
	levels map[int]int
}

func newTestServer(t *testing.T, levels map[int]int) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	ts := &testServer{
		mux:     http.NewServeMux(),
		storage: memory.NewStore(),
		catalog: mocks.NewMockCatalogService(ctrl),
		stock:   mocks.NewMockStockService(ctrl),
		levels:  levels,
	}

	ts.catalog.EXPECT().
		GetProduct(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int) (*domain.Product, error) {
			return helpers.CreateTestProduct(id), nil
		}).
		AnyTimes()
	ts.stock.EXPECT().
		GetStock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int) (*domain.StockSnapshot, error) {
			ts.mu.Lock()
			defer ts.mu.Unlock()
			return &domain.StockSnapshot{ProductID: id, Amount: ts.levels[id]}, nil
		}).
		AnyTimes()

	ts.sessions = services.NewSessionManager(ts.catalog, ts.stock, ts.storage,
		notify.RecorderNotifier{}, helpers.TestLogger(), services.CartStoreOptions{})

	cart := handlers.NewCartHandler(ts.sessions, helpers.TestLogger())
	export := handlers.NewExportHandler(ts.sessions, helpers.TestLogger())
	ts.mux.HandleFunc("GET /api/v1/cart", cart.GetCart)
	ts.mux.HandleFunc("POST /api/v1/cart/items", cart.AddItem)
	ts.mux.HandleFunc("PUT /api/v1/cart/items/{productId}", cart.SetItemAmount)
	ts.mux.HandleFunc("DELETE /api/v1/cart/items/{productId}", cart.RemoveItem)
	ts.mux.HandleFunc("GET /api/v1/cart/export", export.Export)
	return ts
}

func (ts *testServer) do(t *testing.T, session, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if session != "" {
		req = req.WithContext(logger.WithSessionID(req.Context(), session))
	}

	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}
