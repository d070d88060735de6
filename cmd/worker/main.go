// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/storefront-cart/internal/adapters/db"
	redis_a "github.com/ammerola/storefront-cart/internal/adapters/redis_adapter"
	"github.com/ammerola/storefront-cart/internal/pkg/config"
	"github.com/ammerola/storefront-cart/internal/pkg/logger"
	"github.com/ammerola/storefront-cart/internal/workers"
)

func main() {
	slogger := logger.SetupLogger("info", "json", "storefront-cart-worker", "", "").Logger

	cfg, err := config.Load(slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Reconfigure logger with loaded settings
	slogger = logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.Name+"-worker", cfg.App.Version, cfg.App.Environment).Logger
	slogger.Info("starting worker",
		slog.String("environment", cfg.App.Environment),
		slog.String("redis_addr", cfg.Asynq.RedisAddr))

	ctx := context.Background()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}

	// Notification counters live next to the queue
	counterClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	})
	defer counterClient.Close()

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     cfg.Asynq.Concurrency,
			Queues:          cfg.Asynq.Queues,
			StrictPriority:  cfg.Asynq.StrictPriority,
			ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
			RetryDelayFunc:  exponentialBackoff,
			ShutdownTimeout: cfg.Asynq.ShutdownTimeout,
			HealthCheckFunc: healthCheck,
			Logger:          newAsynqLogger(slogger),
		},
	)

	mux := asynq.NewServeMux()

	notificationProcessor := workers.NewNotificationProcessor(
		redis_a.NewCache(counterClient, cfg.Redis.TTL, slogger), slogger)
	mux.HandleFunc(workers.TypeCartNotification, notificationProcessor.ProcessNotification)

	var scheduler *asynq.Scheduler
	if cfg.Cart.StorageBackend == config.BackendPostgres {
		database, err := initDatabase(ctx, cfg, slogger)
		if err != nil {
			slogger.Error("failed to initialize database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()

		kv := db.NewKVStore(database.SQL(), cfg.Database.Table, slogger)
		cleanupProcessor := workers.NewCleanupProcessor(kv, cfg.Cart.Retention, slogger)
		mux.HandleFunc(workers.TypePurgeStaleCarts, cleanupProcessor.PurgeStaleCarts)

		scheduler, err = newScheduler(redisOpt, cfg, slogger)
		if err != nil {
			slogger.Error("failed to register purge schedule", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		slogger.Info("stale cart purge disabled",
			slog.String("storage_backend", cfg.Cart.StorageBackend),
			slog.String("retention", retentionPolicy(cfg.Cart.StorageBackend)))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(mux); err != nil {
			slogger.Error("failed to run worker server", slog.String("error", err.Error()))
			shutdown <- syscall.SIGTERM
		}
	}()

	if scheduler != nil {
		go func() {
			if err := scheduler.Run(); err != nil {
				slogger.Error("failed to run scheduler", slog.String("error", err.Error()))
				shutdown <- syscall.SIGTERM
			}
		}()
	}

	slogger.Info("worker started successfully",
		slog.Int("concurrency", cfg.Asynq.Concurrency),
		slog.Any("queues", cfg.Asynq.Queues))

	sig := <-shutdown
	slogger.Info("shutdown signal received", slog.String("signal", sig.String()))

	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()
	slogger.Info("worker shutdown complete")
}

// retentionPolicy describes how carts of backend go away without the purge task
func retentionPolicy(backend string) string {
	switch backend {
	case config.BackendPostgres:
		return "purged by schedule"
	case config.BackendRedis:
		return "expire after CART_RETENTION"
	default:
		return "kept until removed"
	}
}

func newScheduler(redisOpt asynq.RedisClientOpt, cfg *config.Config, logger *slog.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(logger),
		Location: time.UTC,
	})

	task, err := workers.NewPurgeTask(cfg.Cart.Retention)
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(cfg.Asynq.PurgeSchedule, task, asynq.Queue(cfg.Asynq.NotificationQueue))
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", workers.TypePurgeStaleCarts, err)
	}

	logger.Info("stale cart purge scheduled",
		slog.String("entry_id", entryID),
		slog.String("schedule", cfg.Asynq.PurgeSchedule),
		slog.Duration("retention", cfg.Cart.Retention))
	return scheduler, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.Database, error) {
	dbConfig := db.DefaultConfig()
	dbConfig.Host = cfg.Database.Host
	dbConfig.Port = cfg.Database.Port
	dbConfig.User = cfg.Database.User
	dbConfig.Password = cfg.Database.Password
	dbConfig.Database = cfg.Database.Name
	dbConfig.SSLMode = cfg.Database.SSLMode
	dbConfig.MaxConnections = 4 // Purges are rare
	dbConfig.MinConnections = 1
	dbConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	dbConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	dbConfig.ConnectTimeout = cfg.Database.ConnectTimeout
	dbConfig.EnableQueryLogging = cfg.Database.QueryLogging

	return db.NewDatabase(ctx, dbConfig, logger)
}

func handleError(ctx context.Context, task *asynq.Task, err error) {
	slog.ErrorContext(ctx, "task processing failed",
		slog.String("type", task.Type()),
		slog.String("payload", string(task.Payload())),
		slog.String("error", err.Error()))
}

func exponentialBackoff(n int, e error, t *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func healthCheck(err error) {
	if err != nil {
		slog.Error("worker health check failed", slog.String("error", err.Error()))
	}
}

// asynqLogger adapts slog for Asynq
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{
		logger: logger.With(slog.String("component", "asynq")),
	}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
