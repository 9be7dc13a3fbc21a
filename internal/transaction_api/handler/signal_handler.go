package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
)

// SignalService delivers external confirmations to running sagas
type SignalService interface {
	Signal(ctx context.Context, sagaID string, success bool, message string) error
}

// SignalHandler handles confirmation signals and webhook callbacks
type SignalHandler struct {
	signals SignalService
	logger  *slog.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(logger *slog.Logger, signals SignalService) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		logger:  logger,
	}
}

// Signal routes a payment provider confirmation to the saga derived from
// the operation fields. Delivery is accepted even when the saga is not
// currently waiting; the confirmation is buffered for the next await.
func (h *SignalHandler) Signal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid signal body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	sagaID := saga.InstanceID(req.OperationType, req.ExternalOperationID)
	if err := h.signals.Signal(c.Request.Context(), sagaID, req.Success, req.Message); err != nil {
		if errors.Is(err, saga.ErrInstanceNotFound) {
			RespondNotFound(c, "Saga instance not found")
			return
		}
		h.logger.Error("Failed to deliver signal", "saga_id", sagaID, "error", err)
		RespondInternalError(c)
		return
	}

	h.logger.Info("Signal delivered", "saga_id", sagaID, "success", req.Success)
	RespondOK(c, gin.H{"saga_id": sagaID})
}

// Webhook is a completion callback sink. It logs the payload and always
// acknowledges; saga completion never depends on what the receiver does.
func (h *SignalHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		RespondBadRequest(c, "Failed to read webhook body")
		return
	}

	h.logger.Info("Webhook received",
		"payload", string(body),
		"correlation_id", c.GetHeader("X-Correlation-ID"),
	)
	RespondOK(c, gin.H{"received": true})
}
