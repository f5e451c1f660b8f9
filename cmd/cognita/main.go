package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"cognita/internal/auth"
	"cognita/internal/cli"
	apphttp "cognita/internal/http"
	"cognita/internal/log"
	"cognita/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	repo := cli.InitRepository(ctx, logger, cfg)
	defer repo.Close()

	store, stopCache := cli.InitDashboardCache(ctx, logger, cfg)
	defer stopCache()

	agg, err := cli.NewAggregator(cfg)
	if err != nil {
		logger.Error("Invalid metrics configuration", log.FieldError, err)
		os.Exit(1)
	}
	dashboard := services.NewDashboardService(repo, store, agg, logger)

	var publisher services.Publisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}
	records := services.NewRecordService(repo, dashboard, publisher, logger)

	devUser := cli.DevUser(cfg)
	if cfg.AuthDisabled {
		logger.Warn("Authentication disabled, all requests act as the dev user", log.FieldUserID, devUser.String())
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:   records,
		Dashboard: dashboard,
		DB:        repo,
		Verifier:  auth.NewVerifier(cfg.AuthJWTSecret, nil),
		DevUser:   devUser,
		Location:  agg.Calendar.Location(),
		Logger:    logger,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting cognita server", "port", cfg.Port, "db_driver", cfg.DBDriver, "cache", cfg.CacheBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
