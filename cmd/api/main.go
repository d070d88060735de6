// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-cart/internal/adapters/catalog"
	"github.com/ammerola/storefront-cart/internal/adapters/db"
	"github.com/ammerola/storefront-cart/internal/adapters/memory"
	"github.com/ammerola/storefront-cart/internal/adapters/notify"
	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/adapters/storage"
	"github.com/ammerola/storefront-cart/internal/core/ports"
	"github.com/ammerola/storefront-cart/internal/core/services"
	"github.com/ammerola/storefront-cart/internal/handlers"
	"github.com/ammerola/storefront-cart/internal/handlers/middleware"
	"github.com/ammerola/storefront-cart/internal/pkg/config"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

const eventsPath = "/api/v1/cart/events"

func main() {
	appLogger := logger.SetupLogger("info", "json", "storefront-cart", Version, "")
	slogger := appLogger.Logger

	slogger.Info("starting storefront cart api",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loadSecrets(ctx, cfg, slogger); err != nil {
		slogger.Error("failed to load secrets", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	appLogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.Name, cfg.App.Version, cfg.App.Environment)
	slogger = appLogger.Logger
	slogger.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("storage_backend", cfg.Cart.StorageBackend),
		slog.String("catalog_url", cfg.Remote.CatalogURL),
	)

	deps, err := initializeDependencies(ctx, cfg, slogger)
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.cleanup()

	go deps.sessions.RunEviction(ctx, cfg.Cart.SessionSweep, cfg.Cart.SessionIdle)

	server := setupHTTPServer(ctx, cfg, deps, appLogger)
	server.RegisterOnShutdown(deps.cartHandler.Shutdown)

	serverErrors := make(chan error, 1)
	go func() {
		slogger.Info("starting HTTP server",
			slog.String("address", cfg.GetServerAddress()),
		)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogger.Error("server error", slog.String("error", err.Error()))
		}
	case sig := <-shutdown:
		slogger.Info("shutdown signal received",
			slog.String("signal", sig.String()),
		)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slogger.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
			server.Close()
		}

		cancel()
		slogger.Info("server shutdown complete",
			slog.Int("sessions", deps.sessions.Len()))
	}
}

func loadSecrets(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sm, err := config.NewSecretsManager(cfg, logger)
	if err != nil {
		return err
	}
	return config.ApplySecrets(ctx, cfg, sm)
}

// dependencies holds all application dependencies
type dependencies struct {
	database       *db.Database
	redisClient    redis.UniversalClient
	asynqClient    *asynq.Client
	asynqInspector *asynq.Inspector
	sessions       *services.SessionManager
	cartHandler    *handlers.CartHandler
	exportHandler  *handlers.ExportHandler
	healthHandler  *handlers.HealthHandler
}

func (d *dependencies) cleanup() {
	if d.database != nil {
		d.database.Close()
	}
	if d.asynqInspector != nil {
		d.asynqInspector.Close()
	}
	if d.asynqClient != nil {
		d.asynqClient.Close()
	}
	if d.redisClient != nil {
		d.redisClient.Close()
	}
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Cart.StorageBackend == config.BackendRedis || cfg.Remote.CatalogCacheTTL > 0
}

func initializeDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if needsRedis(cfg) {
		logger.Info("connecting to Redis",
			slog.String("address", cfg.GetRedisAddress()),
		)

		redisClient := redis.NewClient(&redis.Options{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		deps.redisClient = redisClient
	}

	store, err := openStorage(ctx, cfg, deps, logger)
	if err != nil {
		deps.cleanup()
		return nil, err
	}

	remote := catalog.NewClient(catalog.Config{
		CatalogURL:      cfg.Remote.CatalogURL,
		StockURL:        cfg.Remote.StockURL,
		RateLimit:       cfg.Remote.RateLimit,
		Burst:           cfg.Remote.Burst,
		BreakerFailures: cfg.Remote.BreakerFailures,
		BreakerTimeout:  cfg.Remote.BreakerTimeout,
	}, logger)

	var products ports.CatalogService = remote
	if deps.redisClient != nil && cfg.Remote.CatalogCacheTTL > 0 {
		cache := redis_a.NewCache(deps.redisClient, cfg.Redis.TTL, logger)
		products = catalog.NewCachedCatalog(remote, cache, cfg.Remote.CatalogCacheTTL, logger)
	}

	notifiers := []ports.Notifier{notify.RecorderNotifier{}, notify.NewLogNotifier(logger)}
	if cfg.Asynq.Enabled {
		logger.Info("initializing Asynq client")

		asynqRedisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Asynq.RedisAddr,
			Password: cfg.Asynq.RedisPassword,
			DB:       cfg.Asynq.RedisDB,
		}
		deps.asynqClient = asynq.NewClient(asynqRedisOpt)
		deps.asynqInspector = asynq.NewInspector(asynqRedisOpt)
		notifiers = append(notifiers, notify.NewQueueNotifier(deps.asynqClient, cfg.Asynq.NotificationQueue, logger))
	}

	deps.sessions = services.NewSessionManager(
		products,
		remote,
		store,
		notify.NewFanout(notifiers...),
		logger,
		services.CartStoreOptions{
			StorageKey:    cfg.Cart.StorageKey,
			RemoteTimeout: cfg.Remote.Timeout,
		},
	)

	deps.cartHandler = handlers.NewCartHandler(deps.sessions, logger)
	deps.exportHandler = handlers.NewExportHandler(deps.sessions, logger)
	deps.healthHandler = handlers.NewHealthHandler(deps.sessions, cfg, logger, healthChecks(cfg, deps, store)...)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func healthChecks(cfg *config.Config, deps *dependencies, store ports.DurableStore) []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if deps.database != nil {
		checks = append(checks, handlers.DatabaseCheck(deps.database))
	}
	if deps.redisClient != nil {
		checks = append(checks, handlers.RedisCheck(deps.redisClient))
	}
	if s3Store, ok := store.(*storage.S3Store); ok {
		checks = append(checks, handlers.StorageCheck(cfg.Cart.StorageBackend, s3Store.Ping))
	}
	if deps.asynqInspector != nil {
		checks = append(checks, handlers.AsynqCheck(deps.asynqInspector))
	}
	return checks
}

// openStorage builds the durable store selected by CART_STORAGE_BACKEND
func openStorage(ctx context.Context, cfg *config.Config, deps *dependencies, logger *slog.Logger) (ports.DurableStore, error) {
	switch cfg.Cart.StorageBackend {
	case config.BackendMemory:
		logger.Warn("cart storage is in memory, carts are lost on restart")
		return memory.NewStore(), nil

	case config.BackendFile:
		store, err := memory.NewFileStore(cfg.Cart.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cart file: %w", err)
		}
		return store, nil

	case config.BackendRedis:
		return redis_a.NewStore(deps.redisClient, cfg.Cart.RedisPrefix, cfg.Cart.Retention, logger), nil

	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			if err := runMigrations(ctx, cfg, logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		logger.Info("connecting to database",
			slog.String("host", cfg.Database.Host),
			slog.String("database", cfg.Database.Name),
		)
		database, err := db.NewDatabase(ctx, databaseConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		deps.database = database
		return db.NewKVStore(database.SQL(), cfg.Database.Table, logger), nil

	case config.BackendS3:
		s3cfg := &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			Prefix:          cfg.Cart.S3Prefix,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}
		client, err := storage.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(ctx, client, s3cfg.Bucket, s3cfg.Prefix, logger)

	default:
		return nil, fmt.Errorf("unknown cart storage backend %q", cfg.Cart.StorageBackend)
	}
}

func databaseConfig(cfg *config.Config) *db.Config {
	dbCfg := db.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.Name
	dbCfg.SSLMode = cfg.Database.SSLMode
	dbCfg.MaxConnections = int32(cfg.Database.MaxConnections)
	dbCfg.MinConnections = int32(cfg.Database.MinConnections)
	dbCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	dbCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	dbCfg.EnableQueryLogging = cfg.Database.QueryLogging
	return dbCfg
}

func setupHTTPServer(ctx context.Context, cfg *config.Config, deps *dependencies, appLogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	// Innermost first; requests pass RequestID first and Session last
	var handler http.Handler = mux
	handler = middleware.Session(cfg.IsProduction())(handler)
	handler = middleware.Timeout(cfg.Server.RequestTimeout, eventsPath)(handler)

	if cfg.Security.SecureHeaders {
		handler = middleware.SecureHeaders(handler)
	}
	if len(cfg.Security.AllowedOrigins) > 0 {
		handler = middleware.CORS(cfg.Security.AllowedOrigins)(handler)
	}
	if cfg.Security.RateLimitRequests > 0 {
		handler = middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration)(handler)
	}

	handler = middleware.Recovery(appLogger.Logger)(handler)
	handler = middleware.Logger(appLogger)(handler)
	handler = middleware.RequestID(handler)

	return &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(appLogger.Handler(), slog.LevelError),
	}
}

func registerRoutes(mux *http.ServeMux, deps *dependencies) {
	apiV1 := "/api/v1"
	writes := middleware.ContentTypeJSON

	mux.HandleFunc("GET /health", deps.healthHandler.Health)
	mux.HandleFunc("GET /ready", deps.healthHandler.Readiness)
	mux.HandleFunc("GET "+apiV1+"/health", deps.healthHandler.Health)

	mux.HandleFunc("GET "+apiV1+"/cart", deps.cartHandler.GetCart)
	mux.Handle("POST "+apiV1+"/cart/items", writes(http.HandlerFunc(deps.cartHandler.AddItem)))
	mux.Handle("PUT "+apiV1+"/cart/items/{productId}", writes(http.HandlerFunc(deps.cartHandler.SetItemAmount)))
	mux.Handle("DELETE "+apiV1+"/cart/items/{productId}", writes(http.HandlerFunc(deps.cartHandler.RemoveItem)))
	mux.HandleFunc("GET "+eventsPath, deps.cartHandler.Events)
	mux.Handle("GET "+apiV1+"/cart/export", middleware.Compression(http.HandlerFunc(deps.exportHandler.Export)))
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")

	migrationConfig := &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}

	return db.RunMigrationsWithRetry(ctx, migrationConfig, logger, 3)
}
