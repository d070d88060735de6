// internal/pkg/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends for cart persistence
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Remote catalog and stock API
	Remote RemoteConfig

	// Cart persistence and sessions
	Cart CartConfig

	// Redis
	Redis RedisConfig

	// Database
	Database DatabaseConfig

	// AWS
	AWS AWSConfig

	// Asynq
	Asynq AsynqConfig

	// Security
	Security SecurityConfig

	// Secrets
	Secrets SecretsConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string `required:"true"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
}

// RemoteConfig holds the catalog and stock client configuration
type RemoteConfig struct {
	CatalogURL      string `required:"true"`
	StockURL        string `required:"true"`
	Timeout         time.Duration
	RateLimit       float64 // requests per second, 0 disables limiting
	Burst           int
	BreakerFailures int
	BreakerTimeout  time.Duration
	CatalogCacheTTL time.Duration // 0 disables the product cache
}

// CartConfig holds cart persistence configuration
type CartConfig struct {
	StorageBackend string
	StorageKey     string `required:"true"`
	FilePath       string
	RedisPrefix    string
	S3Prefix       string
	Retention      time.Duration
	SessionIdle    time.Duration
	SessionSweep   time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	AutoMigrate     bool
	QueryLogging    bool
	Table           string
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	Enabled           bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	Concurrency       int
	Queues            map[string]int // queue name -> priority
	StrictPriority    bool
	RetryMax          int
	ShutdownTimeout   time.Duration
	NotificationQueue string
	PurgeSchedule     string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// SecretsConfig selects where credentials are read from
type SecretsConfig struct {
	Provider string // env, aws
	Name     string
}

// Load loads configuration from environment variables and, when CONFIG_FILE
// is set, from that file. Environment variables win over file values.
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file in development
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		logger.Info("config file loaded", slog.String("path", file))
	}

	e := &reader{v: v}

	remoteBase := e.String("REMOTE_BASE_URL", "http://localhost:3333")
	redisHost := e.String("REDIS_HOST", "localhost")
	redisPort := e.String("REDIS_PORT", "6379")

	cfg := &Config{
		App: AppConfig{
			Name:        e.String("APP_NAME", "storefront-cart"),
			Environment: env,
			Version:     e.String("APP_VERSION", "dev"),
			LogLevel:    e.String("LOG_LEVEL", "info"),
			LogFormat:   e.String("LOG_FORMAT", "json"),
			Debug:       e.Bool("APP_DEBUG", env == "development"),
		},
		Server: ServerConfig{
			Host:            e.String("SERVER_HOST", "0.0.0.0"),
			Port:            e.String("SERVER_PORT", "8080"),
			ReadTimeout:     e.Duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    e.Duration("SERVER_WRITE_TIMEOUT", 0), // SSE streams stay open
			IdleTimeout:     e.Duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  e.Duration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			MaxHeaderBytes:  e.Int("SERVER_MAX_HEADER_BYTES", 1<<20), // 1 MB
			GracefulTimeout: e.Duration("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
		},
		Remote: RemoteConfig{
			CatalogURL:      e.String("REMOTE_CATALOG_URL", remoteBase),
			StockURL:        e.String("REMOTE_STOCK_URL", remoteBase),
			Timeout:         e.Duration("REMOTE_TIMEOUT", 5*time.Second),
			RateLimit:       e.Float("REMOTE_RATE_LIMIT", 50),
			Burst:           e.Int("REMOTE_BURST", 10),
			BreakerFailures: e.Int("REMOTE_BREAKER_FAILURES", 5),
			BreakerTimeout:  e.Duration("REMOTE_BREAKER_TIMEOUT", 30*time.Second),
			CatalogCacheTTL: e.Duration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Cart: CartConfig{
			StorageBackend: strings.ToLower(e.String("CART_STORAGE_BACKEND", BackendRedis)),
			StorageKey:     e.String("CART_STORAGE_KEY", "cart:v1"),
			FilePath:       e.String("CART_FILE_PATH", "data/carts.json"),
			RedisPrefix:    e.String("CART_REDIS_PREFIX", "storefront:"),
			S3Prefix:       e.String("CART_S3_PREFIX", "carts/"),
			Retention:      e.Duration("CART_RETENTION", 30*24*time.Hour),
			SessionIdle:    e.Duration("CART_SESSION_IDLE", 30*time.Minute),
			SessionSweep:   e.Duration("CART_SESSION_SWEEP", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         redisHost,
			Port:         redisPort,
			Password:     e.String("REDIS_PASSWORD", ""),
			DB:           e.Int("REDIS_DB", 0),
			MaxRetries:   e.Int("REDIS_MAX_RETRIES", 3),
			DialTimeout:  e.Duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.Duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.Duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     e.Int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.Int("REDIS_MIN_IDLE_CONNS", 2),
			TTL:          e.Duration("REDIS_TTL", time.Hour),
		},
		Database: DatabaseConfig{
			Host:            e.String("DB_HOST", "localhost"),
			Port:            e.String("DB_PORT", "5432"),
			User:            e.String("DB_USER", "storefront"),
			Password:        e.String("DB_PASSWORD", "storefront_dev"),
			Name:            e.String("DB_NAME", "storefront_cart"),
			SSLMode:         e.String("DB_SSL_MODE", "disable"),
			MaxConnections:  e.Int("DB_MAX_CONNECTIONS", 25),
			MinConnections:  e.Int("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: e.Duration("DB_CONNECTION_LIFETIME", time.Hour),
			MaxConnIdleTime: e.Duration("DB_IDLE_TIME", 30*time.Minute),
			ConnectTimeout:  e.Duration("DB_CONNECT_TIMEOUT", 10*time.Second),
			AutoMigrate:     e.Bool("DB_AUTO_MIGRATE", true),
			QueryLogging:    e.Bool("DB_QUERY_LOGGING", false),
			Table:           e.String("DB_CART_TABLE", "cart_storage"),
		},
		AWS: AWSConfig{
			Region:          e.String("AWS_REGION", "us-east-1"),
			AccessKeyID:     e.String("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: e.String("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        e.String("AWS_S3_BUCKET", "storefront-carts"),
			S3Endpoint:      e.String("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    e.Bool("AWS_S3_PATH_STYLE", env == "development"),
		},
		Asynq: AsynqConfig{
			Enabled:           e.Bool("ASYNQ_ENABLED", true),
			RedisAddr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
			RedisPassword:     e.String("REDIS_PASSWORD", ""),
			RedisDB:           e.Int("ASYNQ_REDIS_DB", 0),
			Concurrency:       e.Int("ASYNQ_CONCURRENCY", 10),
			Queues:            parseQueues(e.String("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:    e.Bool("ASYNQ_STRICT_PRIORITY", false),
			RetryMax:          e.Int("ASYNQ_RETRY_MAX", 3),
			ShutdownTimeout:   e.Duration("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
			NotificationQueue: e.String("ASYNQ_NOTIFICATION_QUEUE", "low"),
			PurgeSchedule:     e.String("ASYNQ_PURGE_SCHEDULE", "@every 1h"),
		},
		Security: SecurityConfig{
			RateLimitRequests: e.Int("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: e.Duration("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    e.Slice("ALLOWED_ORIGINS", []string{"*"}),
			SecureHeaders:     e.Bool("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   e.String("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Secrets: SecretsConfig{
			Provider: strings.ToLower(e.String("SECRETS_PROVIDER", "env")),
			Name:     e.String("SECRETS_NAME", ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := ValidateAll(cfg, ValidatorsFor(cfg)...); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validateRequiredFields(c); err != nil {
		return err
	}

	for name, raw := range map[string]string{
		"catalog": c.Remote.CatalogURL,
		"stock":   c.Remote.StockURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("remote %s url %q is not an absolute url", name, raw)
		}
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}
	if c.Cart.SessionIdle > 0 && c.Cart.SessionIdle <= c.Remote.Timeout {
		return fmt.Errorf("cart session idle %s must exceed remote timeout %s",
			c.Cart.SessionIdle, c.Remote.Timeout)
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("remote rate limit cannot be negative")
	}

	switch c.Cart.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Cart.FilePath == "" {
			return fmt.Errorf("cart file path is required for the file backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database host and name are required for the postgres backend")
		}
		if c.Database.MaxConnections < c.Database.MinConnections {
			return fmt.Errorf("max connections must be >= min connections")
		}
	case BackendS3:
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown cart storage backend %q", c.Cart.StorageBackend)
	}

	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.Secrets.Provider == "aws" && c.Secrets.Name == "" {
		return fmt.Errorf("secrets name is required for the aws secrets provider")
	}

	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		url.PathEscape(c.Database.User),
		url.PathEscape(c.Database.Password),
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns host:port of the Redis server
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// Helper functions

// reader resolves keys through viper: environment first, then the config
// file, then the given default.
type reader struct {
	v *viper.Viper
}

func (r *reader) String(key, defaultValue string) string {
	r.v.SetDefault(key, defaultValue)
	return r.v.GetString(key)
}

func (r *reader) Bool(key string, defaultValue bool) bool {
	r.v.SetDefault(key, defaultValue)
	return r.v.GetBool(key)
}

func (r *reader) Int(key string, defaultValue int) int {
	r.v.SetDefault(key, defaultValue)
	return r.v.GetInt(key)
}

func (r *reader) Float(key string, defaultValue float64) float64 {
	r.v.SetDefault(key, defaultValue)
	return r.v.GetFloat64(key)
}

func (r *reader) Duration(key string, defaultValue time.Duration) time.Duration {
	r.v.SetDefault(key, defaultValue)
	return r.v.GetDuration(key)
}

// Slice splits comma separated values; viper's own slice cast splits on spaces.
func (r *reader) Slice(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(r.v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	pairs := strings.Split(queuesStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
