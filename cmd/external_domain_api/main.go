package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paymentops/transaction-saga/internal/config"
	"github.com/paymentops/transaction-saga/internal/external_domain_api"
	"github.com/paymentops/transaction-saga/internal/external_domain_api/service"
	"github.com/paymentops/transaction-saga/internal/logger"
	"github.com/paymentops/transaction-saga/internal/saga/relay"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("external_domain_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting External Domain API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"transaction_api_url", cfg.Remote.TransactionAPIURL,
	)

	// Initialize the cross-domain relay against the transaction domain
	remote := relay.NewHTTPService(cfg.Remote.TransactionAPIURL, cfg.Remote.PollInterval, log)
	sagaRelay := relay.New(remote, log)

	// Initialize the orchestration service
	orchestration, err := service.NewOrchestrationService(appCtx, cfg.WorkerPool.Size, sagaRelay, log)
	if err != nil {
		log.Error("Failed to initialize orchestration service", "error", err)
		os.Exit(1)
	}

	// Initialize REST server
	server := external_domain_api.NewServer(log, cfg, orchestration)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	orchestration.Shutdown()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
