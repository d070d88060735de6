// internal/adapters/db/postgres.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
)

// Config holds database configuration
type Config struct {
	Host               string
	Port               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
}

// DefaultConfig returns settings for a local cart database. Cart writes are
// single-row upserts, so the pool stays small.
func DefaultConfig() *Config {
	return &Config{
		Host:              "localhost",
		Port:              "5432",
		User:              "storefront",
		Password:          "storefront_dev",
		Database:          "storefront_cart",
		SSLMode:           "disable",
		MaxConnections:    10,
		MinConnections:    2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}
}

// URL returns the connection string for c, usable by pgx and migrate
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprint(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Database owns the pgx pool and a database/sql handle sharing it
type Database struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	logger *slog.Logger
}

// NewDatabase connects the pool and verifies it with a ping
func NewDatabase(ctx context.Context, config *Config, logger *slog.Logger) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(config.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = config.MaxConnections
	poolConfig.MinConns = config.MinConnections
	poolConfig.MaxConnLifetime = config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = config.HealthCheckPeriod
	// KVStore issues the same three statements, cache their descriptions
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	if config.EnableQueryLogging {
		poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   pgxLogger{logger: logger.With(slog.String("component", "pgx"))},
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
		slog.Int("max_connections", int(config.MaxConnections)))

	return &Database{
		pool:   pool,
		sqlDB:  stdlib.OpenDBFromPool(pool),
		logger: logger,
	}, nil
}

// SQL returns a database/sql handle sharing the pool
func (db *Database) SQL() *sql.DB {
	return db.sqlDB
}

// Ping verifies database connectivity
func (db *Database) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Health reports pool usage, or the error of a trivial query
func (db *Database) Health(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := db.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return map[string]any{"status": "unhealthy", "error": err.Error()}
	}

	stats := db.pool.Stat()
	return map[string]any{
		"status":         "healthy",
		"total_conns":    stats.TotalConns(),
		"idle_conns":     stats.IdleConns(),
		"acquired_conns": stats.AcquiredConns(),
		"max_conns":      stats.MaxConns(),
		"empty_acquires": stats.EmptyAcquireCount(),
	}
}

// Close closes the sql handle, then the pool
func (db *Database) Close() {
	db.sqlDB.Close()
	db.pool.Close()
	db.logger.Info("database connections closed")
}

type pgxLogger struct {
	logger *slog.Logger
}

var pgxLevels = map[tracelog.LogLevel]slog.Level{
	tracelog.LogLevelError: slog.LevelError,
	tracelog.LogLevelWarn:  slog.LevelWarn,
	tracelog.LogLevelInfo:  slog.LevelInfo,
}

func (l pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	lvl, ok := pgxLevels[level]
	if !ok {
		lvl = slog.LevelDebug
	}
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.LogAttrs(ctx, lvl, msg, attrs...)
}
