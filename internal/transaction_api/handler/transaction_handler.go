package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// SagaService starts saga instances and exposes their durable state
type SagaService interface {
	StartSaga(ctx context.Context, req *transaction.Request) (*saga.Instance, error)
	GetInstance(ctx context.Context, sagaID string) (*saga.Instance, error)
}

// TransactionHandler handles HTTP requests for saga lifecycle operations
type TransactionHandler struct {
	sagas  SagaService
	logger *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, sagas SagaService) *TransactionHandler {
	return &TransactionHandler{
		sagas:  sagas,
		logger: logger,
	}
}

// Start accepts a transaction request and starts its saga asynchronously.
// Responds 202 with the saga's workflow and run ids, or 409 when the reuse
// policy rejects the derived id.
func (h *TransactionHandler) Start(c *gin.Context) {
	var req transaction.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		h.logger.Error("Invalid transaction request", "error", err)
		RespondBadRequest(c, err.Error())
		return
	}

	instance, err := h.sagas.StartSaga(c.Request.Context(), &req)
	if err != nil {
		var dup saga.ErrDuplicateInstance
		if errors.As(err, &dup) {
			h.logger.Warn("Duplicate saga rejected", "saga_id", dup.ID)
			RespondConflict(c, dup.Error())
			return
		}
		h.logger.Error("Failed to start saga", "error", err)
		RespondInternalError(c)
		return
	}

	RespondAccepted(c, StartSagaResponse{
		WorkflowID: instance.ID,
		RunID:      instance.RunID,
	})
}

// GetByID returns the durable view of a saga instance, 404 if unknown
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	instance, err := h.sagas.GetInstance(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, saga.ErrInstanceNotFound) {
			RespondNotFound(c, "Saga instance not found")
			return
		}
		h.logger.Error("Failed to get saga instance", "saga_id", id, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapInstanceToResponse(instance))
}

// mapInstanceToResponse maps a saga instance to its status DTO
func mapInstanceToResponse(instance *saga.Instance) SagaStatusResponse {
	return SagaStatusResponse{
		ID:                  instance.ID,
		RunID:               instance.RunID,
		ProfileID:           instance.ProfileID,
		ExternalOperationID: instance.ExternalOperationID,
		OperationType:       instance.OperationType,
		State:               string(instance.State),
		Result:              instance.Result,
		MovementsApplied:    len(instance.AppliedMovements),
		CreatedAt:           instance.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           instance.UpdatedAt.Format(time.RFC3339),
	}
}
