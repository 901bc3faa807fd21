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
	applog "wagebook/internal/log"
	"wagebook/internal/services"
	"wagebook/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentScheduler})
	applog.SetDefault(logger)

	logger.Info("Starting payday-worker")

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

	// Without a broker the scheduler still opens and queues runs; a worker
	// sweep will dispatch them once a connection is available.
	var computeMQ *amqp.Client
	if cfg.AMQPURL != "" {
		computeMQ, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ComputeQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without dispatch", "error", err)
			computeMQ = nil
		} else {
			defer computeMQ.Close()
			logger.Info("AMQP client initialized - due runs will be dispatched for compute")
		}
	} else {
		logger.Info("AMQP disabled - due runs will be queued but not dispatched")
	}

	payrollService := services.NewPayrollService(repo, computeMQ, nil)
	defer payrollService.Close()

	processor := services.NewPaydayProcessor(repo, payrollService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := cfg.SchedulerInterval
	logger.Info("Payday scheduler configured", "interval", interval, "sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run an initial pass on startup so a restart never misses a payday.
	logger.Info("Running initial payday check...")
	if count, err := processor.ProcessDueCompanies(ctx, time.Now()); err != nil {
		logger.Error("Initial payday check failed", "error", err)
	} else {
		logger.Info("Initial payday check complete", "runs_opened", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Checking companies for due paydays...")
				count, err := processor.ProcessDueCompanies(ctx, now)
				if err != nil {
					logger.Error("Payday check failed", "error", err)
				} else {
					logger.Info("Payday check complete",
						"runs_opened", count,
						"next_check", now.Add(interval).Format("15:04:05"))
				}
			}
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

	logger.Info("Shutting down payday-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Payday-worker shutdown complete")
	}
}
