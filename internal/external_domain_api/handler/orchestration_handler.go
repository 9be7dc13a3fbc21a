package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/external_domain_api/service"
	"github.com/paymentops/transaction-saga/internal/transaction_api/middleware"
)

// OrchestrationService is the external domain saga surface the handler needs
type OrchestrationService interface {
	Start(ctx context.Context, req *service.StartRequest) (*service.Record, error)
	Get(ctx context.Context, id string) (*service.Record, error)
}

// StartOperationRequest is the coarse start input of the external domain
type StartOperationRequest struct {
	ProfileID           int64  `json:"profile_id"`
	ExternalOperationID string `json:"external_operation_id" binding:"required"`
	OperationType       string `json:"operation_type" binding:"required"`
	AppCaller           string `json:"app_caller"`
	CallbackURL         string `json:"callback_url"`
}

// OperationStatusResponse is the in-memory view of an external domain saga
type OperationStatusResponse struct {
	ID                  string `json:"id"`
	RunID               string `json:"run_id"`
	ProfileID           int64  `json:"profile_id"`
	ExternalOperationID string `json:"external_operation_id"`
	OperationType       string `json:"operation_type"`
	State               string `json:"state"`
	Result              string `json:"result,omitempty"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// OrchestrationHandler handles HTTP requests for external domain operations
type OrchestrationHandler struct {
	orchestration OrchestrationService
	logger        *slog.Logger
}

// NewOrchestrationHandler creates a new external domain handler
func NewOrchestrationHandler(logger *slog.Logger, orchestration OrchestrationService) *OrchestrationHandler {
	return &OrchestrationHandler{
		orchestration: orchestration,
		logger:        logger,
	}
}

// Start begins an external domain operation that delegates to the
// transaction domain. Responds 202, or 409 for a duplicate operation id.
func (h *OrchestrationHandler) Start(c *gin.Context) {
	var req StartOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		respondError(c, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	record, err := h.orchestration.Start(c.Request.Context(), &service.StartRequest{
		ProfileID:           req.ProfileID,
		ExternalOperationID: req.ExternalOperationID,
		OperationType:       req.OperationType,
		AppCaller:           req.AppCaller,
		CallbackURL:         req.CallbackURL,
	})
	if err != nil {
		var dup saga.ErrDuplicateInstance
		if errors.As(err, &dup) {
			h.logger.Warn("Duplicate external domain operation rejected", "saga_id", dup.ID)
			respondError(c, http.StatusConflict, "CONFLICT", dup.Error())
			return
		}
		h.logger.Error("Failed to start external domain operation", "error", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		return
	}

	respondData(c, http.StatusAccepted, gin.H{
		"workflow_id": record.ID,
		"run_id":      record.RunID,
	})
}

// GetByID returns the current view of an external domain operation
func (h *OrchestrationHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	record, err := h.orchestration.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, saga.ErrInstanceNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Operation not found")
			return
		}
		h.logger.Error("Failed to get external domain operation", "saga_id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		return
	}

	respondData(c, http.StatusOK, OperationStatusResponse{
		ID:                  record.ID,
		RunID:               record.RunID,
		ProfileID:           record.ProfileID,
		ExternalOperationID: record.ExternalOperationID,
		OperationType:       record.OperationType,
		State:               string(record.State),
		Result:              record.Result,
		CreatedAt:           record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           record.UpdatedAt.Format(time.RFC3339),
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"data":           data,
		"correlation_id": middleware.GetCorrelationID(c),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":          gin.H{"code": code, "message": message},
		"correlation_id": middleware.GetCorrelationID(c),
	})
}
