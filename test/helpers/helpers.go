// test/helpers/test_helpers.go
package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/storefront-cart/internal/adapters/db"
	"github.com/ammerola/storefront-cart/internal/core/domain"
	"github.com/ammerola/storefront-cart/internal/pkg/config"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

// TestDB represents a test database instance
type TestDB struct {
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestAppLogger returns the application logger wrapper used by middleware
func TestAppLogger() *logger.Logger {
	level := "error"
	if testing.Verbose() {
		level = "debug"
	}
	return logger.NewLogger(&logger.LogConfig{
		Level:       level,
		Format:      "text",
		Writer:      os.Stdout,
		ServiceName: "storefront-cart-test",
		Environment: "test",
	})
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupTestDB creates a PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_cart",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_cart",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	// Wait for database to be ready
	var database *db.Database
	err = pool.Retry(func() error {
		var err error
		database, err = db.NewDatabase(context.Background(), dbConfig, TestLogger())
		return err
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: dbConfig.URL(),
	}
	err = db.RunMigrationsWithRetry(context.Background(), migrationConfig, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates a mock Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		db.Close()
	})

	return mock, db
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "storefront-cart-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Remote: config.RemoteConfig{
			CatalogURL:      "http://localhost:3333",
			StockURL:        "http://localhost:3333",
			Timeout:         2 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  time.Second,
		},
		Cart: config.CartConfig{
			StorageBackend: config.BackendMemory,
			StorageKey:     "cart:v1",
			SessionIdle:    time.Minute,
			SessionSweep:   time.Minute,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			TTL:      time.Hour,
			PoolSize: 10,
		},
		Database: config.DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "test",
			Password:       "test",
			Name:           "test_cart",
			SSLMode:        "disable",
			MaxConnections: 10,
			MinConnections: 2,
			Table:          db.DefaultCartTable,
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			SecureHeaders:     false,
		},
		Secrets: config.SecretsConfig{Provider: "env"},
	}
}

var testProducts = map[int]struct {
	name  string
	price string
}{
	1: {"Fjallraven Foldsack No. 1 Backpack", "109.95"},
	2: {"Mens Casual Premium Slim Fit T-Shirts", "22.30"},
	3: {"Mens Cotton Jacket", "55.99"},
	4: {"Mens Casual Slim Fit", "15.99"},
}

// CreateTestProduct creates catalog metadata for productID
func CreateTestProduct(productID int, overrides ...func(*domain.Product)) *domain.Product {
	p := &domain.Product{
		ID:       productID,
		Name:     fmt.Sprintf("Test Product %d", productID),
		Price:    decimal.NewFromFloat(9.99),
		ImageURL: fmt.Sprintf("https://storefront.test/img/%d.jpg", productID),
	}
	if known, ok := testProducts[productID]; ok {
		p.Name = known.name
		p.Price = decimal.RequireFromString(known.price)
	}

	for _, override := range overrides {
		override(p)
	}
	return p
}

// CreateTestCart creates a cart holding productID:amount pairs in order
func CreateTestCart(lines ...[2]int) domain.Cart {
	cart := domain.Cart{Items: make([]domain.CartItem, 0, len(lines))}
	for _, line := range lines {
		cart.Items = append(cart.Items, domain.NewCartItem(CreateTestProduct(line[0]), line[1]))
	}
	return cart
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
