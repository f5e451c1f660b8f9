package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"cognita/internal/cli"
	"cognita/internal/log"
	"cognita/internal/services"
	"cognita/internal/sheets"
	gsheet "cognita/internal/sheets/google"
	"cognita/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting cognita-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	repo := cli.InitRepository(ctx, logger, cfg)
	defer repo.Close()

	store, stopCache := cli.InitDashboardCache(ctx, logger, cfg)
	defer stopCache()
	if cfg.CacheBackend != "redis" {
		logger.Warn("Worker uses an in-process cache, warmed dashboards are not visible to the API", "cache", cfg.CacheBackend)
	}

	agg, err := cli.NewAggregator(cfg)
	if err != nil {
		logger.Error("Invalid metrics configuration", log.FieldError, err)
		os.Exit(1)
	}
	dashboard := services.NewDashboardService(repo, store, agg, logger)

	var exporter sheets.FinanceExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleFinanceSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleFinanceSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

	changes := worker.NewChangeWorker(dashboard, repo, exporter)
	go changes.Run(ctx, cfg.RefreshInterval)

	logger.Info("Consuming record changes", "queue", cfg.AMQPQueue, "refresh_interval", cfg.RefreshInterval)
	if err := amqpClient.ConsumeRecordChanges(ctx, changes.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
