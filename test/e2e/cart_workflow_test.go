//go:build e2e
// +build e2e

package e2e_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ammerola/storefront-cart/internal/adapters/catalog"
	"github.com/ammerola/storefront-cart/internal/adapters/notify"
	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/services"
	"github.com/ammerola/storefront-cart/internal/handlers"
	"github.com/ammerola/storefront-cart/internal/handlers/middleware"
	"github.com/ammerola/storefront-cart/test/helpers"
)

const redisPrefix = "storefront:"

type cartBody struct {
	Items         []domain.CartItem     `json:"items"`
	Summary       map[string]any        `json:"summary"`
	Notifications []domain.Notification `json:"notifications"`
	Error         string                `json:"error"`
}

type CartE2ESuite struct {
	suite.Suite
	storefront  *helpers.FakeStorefront
	testRedis   *helpers.TestRedis
	sessions    *services.SessionManager
	cartHandler *handlers.CartHandler
	server      *httptest.Server
	client      *http.Client
	baseURL     string
}

func (s *CartE2ESuite) SetupTest() {
	s.storefront = helpers.NewFakeStorefront(s.T(), map[int]int{1: 3, 2: 5, 3: 2, 4: 1})
	s.testRedis = helpers.SetupTestRedis(s.T())
	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *CartE2ESuite) TearDownTest() {
	s.cartHandler.Shutdown()
	s.server.Close()
}

func (s *CartE2ESuite) TestCompleteCartWorkflow() {
	const session = "e2e-shopper"

	// 1. A new session starts empty
	resp := s.makeRequest(session, "GET", "/cart", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	body := s.decodeCart(resp)
	s.Empty(body.Items)

	// 2. Add two products
	resp = s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 1})
	s.Equal(http.StatusOK, resp.StatusCode)
	body = s.decodeCart(resp)
	s.Require().Len(body.Items, 1)
	s.Equal("Fjallraven Foldsack No. 1 Backpack", body.Items[0].Name)
	s.Equal("109.95", body.Items[0].Price.String())
	s.Empty(body.Notifications)

	resp = s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 2})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeCart(resp)

	// 3. Raise the first line's amount in place
	resp = s.makeRequest(session, "PUT", "/cart/items/1", map[string]int{"amount": 3})
	s.Equal(http.StatusOK, resp.StatusCode)
	body = s.decodeCart(resp)
	s.Require().Len(body.Items, 2)
	s.Equal(1, body.Items[0].ProductID)
	s.Equal(3, body.Items[0].Amount)
	s.Equal("352.15", body.Summary["total"])

	// 4. Stock is exhausted
	resp = s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 1})
	s.Equal(http.StatusConflict, resp.StatusCode)
	body = s.decodeCart(resp)
	s.Require().Len(body.Notifications, 1)
	s.Equal(domain.KindStockExceeded, body.Notifications[0].Kind)
	s.Equal("Requested quantity out of stock", body.Notifications[0].Message)

	// 5. The cart is persisted under the session's key
	stored, err := s.testRedis.Client.Get(context.Background(),
		redisPrefix+services.SessionPrefix(session)+services.DefaultStorageKey).Result()
	s.Require().NoError(err)
	var items []map[string]any
	s.Require().NoError(json.Unmarshal([]byte(stored), &items))
	s.Len(items, 2)
	s.EqualValues(3, items[0]["amount"])

	// 6. Remove a product
	resp = s.makeRequest(session, "DELETE", "/cart/items/2", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	body = s.decodeCart(resp)
	s.Len(body.Items, 1)

	// 7. Removing it again reports the missing product
	resp = s.makeRequest(session, "DELETE", "/cart/items/2", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	body = s.decodeCart(resp)
	s.Require().Len(body.Notifications, 1)
	s.Equal(domain.KindRemoveFailed, body.Notifications[0].Kind)

	// 8. Export to Excel
	resp = s.makeRequest(session, "GET", "/cart/export?format=xlsx", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
}

func (s *CartE2ESuite) TestCartSurvivesRestart() {
	const session = "e2e-restart"

	resp := s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 3})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeCart(resp)

	// A fresh server over the same Redis rehydrates the cart
	s.cartHandler.Shutdown()
	s.server.Close()
	s.server = s.startTestServer()
	s.baseURL = s.server.URL + "/api/v1"

	resp = s.makeRequest(session, "GET", "/cart", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	body := s.decodeCart(resp)
	s.Require().Len(body.Items, 1)
	s.Equal(3, body.Items[0].ProductID)
	s.Equal("Mens Cotton Jacket", body.Items[0].Name)
}

func (s *CartE2ESuite) TestRemoteFailures() {
	const session = "e2e-failures"

	resp := s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 4})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeCart(resp)

	s.storefront.FailStock(true)

	resp = s.makeRequest(session, "PUT", "/cart/items/4", map[string]int{"amount": 1})
	s.Equal(http.StatusBadGateway, resp.StatusCode)
	body := s.decodeCart(resp)
	s.Require().Len(body.Notifications, 1)
	s.Equal(domain.KindUpdateFailed, body.Notifications[0].Kind)

	// The cart is untouched
	resp = s.makeRequest(session, "GET", "/cart", nil)
	body = s.decodeCart(resp)
	s.Require().Len(body.Items, 1)
	s.Equal(1, body.Items[0].Amount)
}

func (s *CartE2ESuite) TestConcurrentAddsRespectStock() {
	const session = "e2e-concurrent"

	var wg sync.WaitGroup
	statuses := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 2})
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := make(map[int]int)
	for status := range statuses {
		counts[status]++
	}
	s.Equal(5, counts[http.StatusOK])
	s.Equal(5, counts[http.StatusConflict])

	resp := s.makeRequest(session, "GET", "/cart", nil)
	body := s.decodeCart(resp)
	s.Require().Len(body.Items, 1)
	s.Equal(5, body.Items[0].Amount)
}

func (s *CartE2ESuite) TestSessionsAreIsolated() {
	resp := s.makeRequest("e2e-alice", "POST", "/cart/items", map[string]int{"product_id": 1})
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decodeCart(resp)

	resp = s.makeRequest("e2e-bob", "GET", "/cart", nil)
	body := s.decodeCart(resp)
	s.Empty(body.Items)
}

func (s *CartE2ESuite) TestSessionCookieIsIssued() {
	req, err := http.NewRequest("GET", s.baseURL+"/cart", nil)
	s.Require().NoError(err)

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(resp.Header.Get(middleware.SessionHeader))

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			found = true
			s.Equal(resp.Header.Get(middleware.SessionHeader), c.Value)
		}
	}
	s.True(found, "session cookie not set")
}

func (s *CartE2ESuite) TestEventStream() {
	const session = "e2e-events"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/cart/events", nil)
	s.Require().NoError(err)
	req.Header.Set(middleware.SessionHeader, session)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan cartBody, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var body cartBody
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &body) == nil {
				events <- body
			}
		}
		close(events)
	}()

	first := s.nextEvent(events)
	s.Empty(first.Items)

	addResp := s.makeRequest(session, "POST", "/cart/items", map[string]int{"product_id": 1})
	s.Equal(http.StatusOK, addResp.StatusCode)
	s.decodeCart(addResp)

	update := s.nextEvent(events)
	s.Require().Len(update.Items, 1)
	s.Equal(1, update.Items[0].ProductID)
}

func (s *CartE2ESuite) TestHealthCheck() {
	resp := s.makeRequest("", "GET", "/health", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&health))
	s.Equal("healthy", health["status"])
	s.Contains(health, "services")

	services := health["services"].(map[string]interface{})
	s.Contains(services, "redis")
}

// Helper methods

func (s *CartE2ESuite) startTestServer() *httptest.Server {
	logger := helpers.TestLogger()
	cfg := helpers.LoadTestConfig()

	remote := catalog.NewClient(catalog.Config{
		CatalogURL:      s.storefront.URL,
		StockURL:        s.storefront.URL,
		BreakerFailures: 100,
		BreakerTimeout:  time.Second,
	}, logger)

	s.sessions = services.NewSessionManager(
		remote,
		remote,
		redis_a.NewStore(s.testRedis.Client, redisPrefix, time.Hour, logger),
		notify.NewFanout(notify.RecorderNotifier{}, notify.NewLogNotifier(logger)),
		logger,
		services.CartStoreOptions{RemoteTimeout: 2 * time.Second},
	)

	s.cartHandler = handlers.NewCartHandler(s.sessions, logger).WithHeartbeat(time.Hour)
	exportHandler := handlers.NewExportHandler(s.sessions, logger)
	healthHandler := handlers.NewHealthHandler(s.sessions, cfg, logger, handlers.RedisCheck(s.testRedis.Client))

	mux := http.NewServeMux()
	writes := middleware.ContentTypeJSON
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)
	mux.HandleFunc("GET /api/v1/cart", s.cartHandler.GetCart)
	mux.Handle("POST /api/v1/cart/items", writes(http.HandlerFunc(s.cartHandler.AddItem)))
	mux.Handle("PUT /api/v1/cart/items/{productId}", writes(http.HandlerFunc(s.cartHandler.SetItemAmount)))
	mux.Handle("DELETE /api/v1/cart/items/{productId}", writes(http.HandlerFunc(s.cartHandler.RemoveItem)))
	mux.HandleFunc("GET /api/v1/cart/events", s.cartHandler.Events)
	mux.HandleFunc("GET /api/v1/cart/export", exportHandler.Export)

	var handler http.Handler = mux
	handler = middleware.Session(false)(handler)
	handler = middleware.Timeout(5*time.Second, "/api/v1/cart/events")(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logger(helpers.TestAppLogger())(handler)
	handler = middleware.RequestID(handler)

	return httptest.NewServer(handler)
}

func (s *CartE2ESuite) makeRequest(session, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.Require().NoError(err)

	if body != nil || method == "DELETE" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(middleware.SessionHeader, session)
	}

	resp, err := s.client.Do(req)
	s.Require().NoError(err)

	return resp
}

func (s *CartE2ESuite) decodeCart(resp *http.Response) cartBody {
	defer resp.Body.Close()
	var body cartBody
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (s *CartE2ESuite) nextEvent(events <-chan cartBody) cartBody {
	select {
	case body, ok := <-events:
		s.Require().True(ok, "event stream closed")
		return body
	case <-time.After(5 * time.Second):
		s.FailNow(fmt.Sprintf("no event within %v", 5*time.Second))
		return cartBody{}
	}
}

func TestCartE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(CartE2ESuite))
}
