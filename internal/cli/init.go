// Package cli provides common CLI initialization utilities shared by
// cmd/cognita and cmd/cognita-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"cognita/internal/amqp"
	"cognita/internal/cache"
	"cognita/internal/config"
	"cognita/internal/log"
	"cognita/internal/metrics"
	"cognita/internal/storage"
)

const (
	dashboardCacheSize   = 1000
	dashboardCachePrefix = "cognita:"
	cacheCleanupInterval = 5 * time.Minute
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets
// it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitRepository opens the configured database and runs migrations.
// Returns the repository or exits the process on failure.
func InitRepository(ctx context.Context, logger *log.Logger, cfg *config.Config) *storage.Repository {
	repo, err := storage.Open(ctx, cfg.DBDriver, cfg.SQLiteDBPath, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize repository", log.FieldError, err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	return repo
}

// InitDashboardCache builds the dashboard cache for CACHE_BACKEND. The
// returned stop function releases background cleanup or the Redis client.
func InitDashboardCache(ctx context.Context, logger *log.Logger, cfg *config.Config) (cache.Store[metrics.DashboardSummary], func()) {
	cacheLogger := logger.WithComponent(log.ComponentCache)
	if cfg.CacheBackend == "redis" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			cacheLogger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		cacheLogger.Info("Dashboard cache initialized", "backend", "redis", "ttl", cfg.CacheTTL)
		return cache.NewRedisStore[metrics.DashboardSummary](client, dashboardCachePrefix, cfg.CacheTTL), func() { _ = client.Close() }
	}

	store := cache.NewLocalStore[metrics.DashboardSummary](dashboardCacheSize, cfg.CacheTTL)
	manager := cache.NewManager(cacheLogger.Logger)
	manager.Register(store)
	manager.StartCleanup(cacheCleanupInterval)
	cacheLogger.Info("Dashboard cache initialized", "backend", "memory", "ttl", cfg.CacheTTL)
	return store, manager.Stop
}

// InitAMQP connects to the broker when AMQP_URL is set. A nil client means
// record changes are not announced.
func InitAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	return client
}

// NewAggregator returns the dashboard aggregator for the configured time
// zone and upcoming-task horizon.
func NewAggregator(cfg *config.Config) (metrics.Aggregator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return metrics.Aggregator{}, err
	}
	agg := metrics.New(loc)
	agg.HorizonDays = cfg.UpcomingHorizonDays
	return agg, nil
}

// DevUser returns the fixed user for AUTH_DISABLED, or uuid.Nil.
func DevUser(cfg *config.Config) uuid.UUID {
	if !cfg.AuthDisabled {
		return uuid.Nil
	}
	id, err := uuid.Parse(cfg.DevUserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
