package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
)

// Signaler delivers an external confirmation to a running saga
type Signaler interface {
	Signal(ctx context.Context, sagaID string, success bool, message string) error
}

// ConfirmationMessage is the wire format of a payment provider confirmation
// published to the confirmations topic.
type ConfirmationMessage struct {
	ExternalOperationID string `json:"external_operation_id"`
	OperationType       string `json:"operation_type"`
	Success             bool   `json:"success"`
	Message             string `json:"message"`
}

// ConfirmationHandler decodes confirmation messages and routes them to the
// saga identified by the operation fields.
type ConfirmationHandler struct {
	signaler Signaler
	logger   *slog.Logger
}

func NewConfirmationHandler(logger *slog.Logger, signaler Signaler) *ConfirmationHandler {
	return &ConfirmationHandler{
		signaler: signaler,
		logger:   logger,
	}
}

// Handle is a MessageHandler. Malformed messages and confirmations for
// unknown sagas return nil so the offset is committed and the message is
// not redelivered.
func (h *ConfirmationHandler) Handle(ctx context.Context, key []byte, value []byte) error {
	var msg ConfirmationMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		h.logger.Error("Failed to decode confirmation message, skipping",
			"key", string(key),
			"error", err,
		)
		return nil
	}

	if msg.ExternalOperationID == "" || msg.OperationType == "" {
		h.logger.Error("Confirmation message missing operation fields, skipping",
			"key", string(key),
		)
		return nil
	}

	sagaID := saga.InstanceID(msg.OperationType, msg.ExternalOperationID)
	err := h.signaler.Signal(ctx, sagaID, msg.Success, msg.Message)
	if err != nil {
		if errors.Is(err, saga.ErrInstanceNotFound) {
			h.logger.Warn("Confirmation for unknown saga, skipping",
				"saga_id", sagaID,
			)
			return nil
		}
		return fmt.Errorf("failed to signal saga %s: %w", sagaID, err)
	}

	h.logger.Info("Confirmation delivered to saga",
		"saga_id", sagaID,
		"success", msg.Success,
	)
	return nil
}
