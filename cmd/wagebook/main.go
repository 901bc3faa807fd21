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
	"time"

	"github.com/joho/godotenv"

	"wagebook/internal/amqp"
	"wagebook/internal/config"
	"wagebook/internal/core"
	apphttp "wagebook/internal/http"
	applog "wagebook/internal/log"
	"wagebook/internal/services"
	"wagebook/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentApp})
	applog.SetDefault(logger)

	logger.Info("Starting wagebook server")

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

	if cfg.BootstrapCompanyName != "" {
		if err := bootstrapCompany(context.Background(), repo, cfg); err != nil {
			logger.Error("Failed to bootstrap company", "error", err, "name", cfg.BootstrapCompanyName)
			os.Exit(1)
		}
	}

	// AMQP is optional: without it runs stay queued until a worker with a
	// broker connection picks them up via the startup sweep.
	var computeMQ, exportMQ *amqp.Client
	if cfg.AMQPURL != "" {
		computeMQ, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ComputeQueue)
		if err != nil {
			logger.Warn("Failed to initialize compute AMQP client, runs will not be dispatched", "error", err)
			computeMQ = nil
		} else {
			defer computeMQ.Close()
		}
		exportMQ, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ExportQueue)
		if err != nil {
			logger.Warn("Failed to initialize export AMQP client, registers will not be exported", "error", err)
			exportMQ = nil
		} else {
			defer exportMQ.Close()
		}
	} else {
		logger.Info("AMQP disabled - payroll runs must be computed by a co-located worker")
	}

	payrollService := services.NewPayrollService(repo, computeMQ, exportMQ)
	defer payrollService.Close()
	leaveService := services.NewLeaveService(repo)
	advanceService := services.NewAdvanceService(repo)

	srv := apphttp.NewServer(":"+cfg.Port, repo, payrollService, leaveService, advanceService)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting wagebook server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// bootstrapCompany creates the configured tenant on first start so the API
// key works immediately. Idempotent: an existing key is left untouched.
func bootstrapCompany(ctx context.Context, repo *storage.SQLiteRepository, cfg *config.Config) error {
	_, err := repo.GetCompanyByAPIKey(ctx, cfg.BootstrapAPIKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("check bootstrap company: %w", err)
	}

	c, err := repo.CreateCompany(ctx, core.Company{
		Name:          cfg.BootstrapCompanyName,
		PayFrequency:  core.Monthly,
		PaydayOfMonth: 25,
		APIKey:        cfg.BootstrapAPIKey,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap company: %w", err)
	}
	slog.Info("Bootstrap company created", "company_id", c.ID, "name", c.Name)
	return nil
}
