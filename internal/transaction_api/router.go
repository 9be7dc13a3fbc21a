package transaction_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paymentops/transaction-saga/internal/transaction_api/handler"
	"github.com/paymentops/transaction-saga/internal/transaction_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	transactionHandler *handler.TransactionHandler,
	signalHandler *handler.SignalHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/v1")
	{
		// Saga lifecycle operations
		transactions := v1.Group("/transactions")
		{
			transactions.POST("", transactionHandler.Start)
			transactions.GET("/:id", transactionHandler.GetByID)
		}

		// External confirmations and completion callbacks
		v1.POST("/stripe-signal", signalHandler.Signal)
		v1.POST("/webhook", signalHandler.Webhook)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
