// internal/adapters/catalog/client.go
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/core/ports"
)

const maxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned for remote responses over maxBodyBytes
var ErrBodyTooLarge = errors.New("response body too large")

// Config holds the remote client configuration
type Config struct {
	CatalogURL      string
	StockURL        string
	RateLimit       float64 // requests per second, 0 disables limiting
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
}

// StatusError is a non-2xx answer from the remote API
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Client reads product metadata and stock from the storefront API
type Client struct {
	catalogURL string
	stockURL   string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// Statically assert that *Client implements both remote ports.
var (
	_ ports.CatalogService = (*Client)(nil)
	_ ports.StockService   = (*Client)(nil)
)

// NewClient creates a remote client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	logger = logger.With(slog.String("component", "catalog_client"))

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	failures := cfg.BreakerFailures
	if failures < 1 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "storefront-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// A 4xx is the remote answering; it says nothing about its health
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		catalogURL: strings.TrimRight(cfg.CatalogURL, "/"),
		stockURL:   strings.TrimRight(cfg.StockURL, "/"),
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		logger:     logger,
	}
}

// productDTO accepts both field spellings the storefront fixtures use
type productDTO struct {
	ID       int             `json:"id"`
	Title    string          `json:"title"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	ImageURL string          `json:"imageUrl"`
}

type stockDTO struct {
	ID     int  `json:"id"`
	Amount *int `json:"amount"`
}

// GetProduct fetches catalog metadata for productID
func (c *Client) GetProduct(ctx context.Context, productID int) (*domain.Product, error) {
	body, err := c.get(ctx, c.catalogURL+"/products/"+strconv.Itoa(productID))
	if err != nil {
		return nil, err
	}

	var dto productDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode product %d: %w", productID, err)
	}

	p := &domain.Product{
		ID:       dto.ID,
		Name:     dto.Title,
		Price:    dto.Price,
		ImageURL: dto.Image,
	}
	if p.ID == 0 {
		p.ID = productID
	}
	if p.Name == "" {
		p.Name = dto.Name
	}
	if p.ImageURL == "" {
		p.ImageURL = dto.ImageURL
	}
	return p, nil
}

// GetStock fetches the available amount of productID
func (c *Client) GetStock(ctx context.Context, productID int) (*domain.StockSnapshot, error) {
	body, err := c.get(ctx, c.stockURL+"/stock/"+strconv.Itoa(productID))
	if err != nil {
		return nil, err
	}

	var dto stockDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode stock %d: %w", productID, err)
	}
	if dto.Amount == nil {
		return nil, fmt.Errorf("stock %d: missing amount", productID)
	}
	return &domain.StockSnapshot{ProductID: productID, Amount: *dto.Amount}, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &StatusError{Code: resp.StatusCode, URL: url}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxBodyBytes {
			return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, maxBodyBytes)
		}
		return body, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "remote request failed",
			slog.String("url", url),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	c.logger.DebugContext(ctx, "remote request",
		slog.String("url", url),
		slog.Duration("duration", time.Since(start)))
	return body, nil
}
