package external_domain_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paymentops/transaction-saga/internal/external_domain_api/handler"
	"github.com/paymentops/transaction-saga/internal/transaction_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	orchestrationHandler *handler.OrchestrationHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/v1")
	{
		operations := v1.Group("/external-domain/transactions")
		{
			operations.POST("", orchestrationHandler.Start)
			operations.GET("/:id", orchestrationHandler.GetByID)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
