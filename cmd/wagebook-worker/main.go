package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wagebook/internal/amqp"
	"wagebook/internal/config"
	"wagebook/internal/export"
	"wagebook/internal/export/google"
	"wagebook/internal/export/memory"
	applog "wagebook/internal/log"
	"wagebook/internal/services"
	"wagebook/internal/storage"
	"wagebook/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting wagebook-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Register writer: Google Sheets when configured, otherwise an in-memory
	// store so posted runs still produce an inspectable register.
	var registerWriter export.RegisterWriter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		registerWriter = sheetsClient
		logger.Info("Google Sheets register export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		registerWriter = memory.New()
		logger.Info("Google Sheets disabled - registers kept in memory only")
	}

	computeMQ, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ComputeQueue)
	if err != nil {
		logger.Error("Failed to initialize compute AMQP client", "error", err)
		os.Exit(1)
	}
	defer computeMQ.Close()

	exportMQ, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ExportQueue)
	if err != nil {
		logger.Error("Failed to initialize export AMQP client", "error", err)
		os.Exit(1)
	}
	defer exportMQ.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payrollWorker := worker.NewPayrollWorker(repo, computeMQ, cfg.WorkerConcurrency)
	exportProcessor := services.NewExportProcessor(repo, registerWriter)

	// Requeue runs stuck in computing from a previous crash, and re-dispatch
	// queued runs whose messages were lost.
	logger.Info("Performing startup sweep...")
	if err := payrollWorker.StartupSweep(ctx, cfg.StaleRunAfter); err != nil {
		logger.Error("Startup sweep failed", "error", err)
		// Don't exit - continue with normal operation
	}

	go func() {
		handler := func(msg *amqp.RunComputeMessage) error {
			return payrollWorker.HandleComputeMessage(ctx, msg)
		}
		if err := computeMQ.ConsumeRunCompute(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Compute message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	go func() {
		handler := func(msg *amqp.RegisterExportMessage) error {
			return exportProcessor.HandleExportMessage(ctx, msg)
		}
		if err := exportMQ.ConsumeRegisterExport(ctx, handler); err != nil {
			if err != context.Canceled {
				logger.Error("Export message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
