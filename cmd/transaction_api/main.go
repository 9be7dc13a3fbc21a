package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paymentops/transaction-saga/internal/config"
	"github.com/paymentops/transaction-saga/internal/data/mongo"
	"github.com/paymentops/transaction-saga/internal/data/postgres"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/logger"
	"github.com/paymentops/transaction-saga/internal/platform/messaging/consumers"
	"github.com/paymentops/transaction-saga/internal/platform/messaging/producers"
	"github.com/paymentops/transaction-saga/internal/platform/persistence"
	"github.com/paymentops/transaction-saga/internal/saga/compensation"
	"github.com/paymentops/transaction-saga/internal/saga/executor"
	"github.com/paymentops/transaction-saga/internal/saga/orchestrator"
	"github.com/paymentops/transaction-saga/internal/saga/retry"
	"github.com/paymentops/transaction-saga/internal/saga/runner"
	sagasignal "github.com/paymentops/transaction-saga/internal/saga/signal"
	"github.com/paymentops/transaction-saga/internal/transaction_api"
	"github.com/paymentops/transaction-saga/internal/webhook"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transaction_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Transaction API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for terminal saga lifecycle events
	eventProducer, err := producers.NewSagaEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize saga event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	instanceRepo := postgres.NewInstanceRepository(log, postgresDB)
	archiveRepo := mongo.NewArchiveRepository(log, mongoDB.Database())

	// Assemble the saga engine
	movementPolicy := retry.Policy{
		MaxAttempts:       cfg.Saga.MovementMaxAttempts,
		PerAttemptTimeout: cfg.Saga.MovementAttemptTimeout,
	}
	webhookPolicy := retry.Policy{
		MaxAttempts:       cfg.Saga.WebhookMaxAttempts,
		PerAttemptTimeout: cfg.Saga.WebhookAttemptTimeout,
	}

	gateway := sagasignal.NewGateway(log)
	retrier := retry.NewCoordinator(log)
	movementExecutor := executor.NewMovementExecutor(log)
	compensator := compensation.NewEngine(movementExecutor, retrier, movementPolicy, log)
	webhookDeliverer := webhook.NewDeliverer(log)

	orch := orchestrator.New(
		movementExecutor,
		retrier,
		gateway,
		compensator,
		webhookDeliverer,
		instanceRepo,
		orchestrator.Config{
			SignalTimeout:  cfg.Saga.SignalTimeout,
			MovementPolicy: movementPolicy,
			WebhookPolicy:  webhookPolicy,
		},
		log,
	)

	sagaRunner, err := runner.New(
		appCtx,
		cfg.WorkerPool.Size,
		orch,
		instanceRepo,
		archiveRepo,
		eventProducer,
		gateway,
		saga.ParseReusePolicy(cfg.Saga.ReusePolicy),
		log,
	)
	if err != nil {
		log.Error("Failed to initialize saga runner", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer routing provider confirmations to sagas
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)
	confirmationHandler := consumers.NewConfirmationHandler(log, sagaRunner)

	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.ConfirmationsTopic, cfg.Kafka.ConsumerGroup, confirmationHandler.Handle); err != nil {
		log.Error("Failed to subscribe to confirmations topic", "error", err)
		os.Exit(1)
	}

	// Initialize REST server
	server := transaction_api.NewServer(log, cfg, sagaRunner)
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

	// Stop accepting new sagas and release the worker pool
	sagaRunner.Shutdown()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Close Kafka consumer and producer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing saga event producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
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
