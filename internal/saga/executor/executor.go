// Package executor runs one movement's business logic against its
// destination system.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// StepExecutor processes a single movement and returns a result summary.
// Destination semantics of a business failure are modeled as a non-error
// summary; only transport-level problems are returned as errors.
type StepExecutor interface {
	Execute(ctx context.Context, movement *transaction.Movement) (string, error)
}

// MovementExecutor dispatches on the movement's destination
type MovementExecutor struct {
	logger *slog.Logger
}

// NewMovementExecutor creates a movement executor
func NewMovementExecutor(logger *slog.Logger) *MovementExecutor {
	return &MovementExecutor{logger: logger}
}

// Execute classifies the destination case-insensitively. Unknown
// destinations produce a summary, not an error, so the saga proceeds.
func (e *MovementExecutor) Execute(ctx context.Context, movement *transaction.Movement) (string, error) {
	e.logger.Info("Processing movement",
		"order", movement.Order,
		"sub_order", movement.SubOrder,
		"type", movement.Type,
		"destination", movement.Destination,
	)

	var result string
	switch strings.ToLower(string(movement.Destination)) {
	case "stripe":
		result = e.processStripe(movement)
	case "balance":
		result = e.processBalance(movement)
	default:
		result = fmt.Sprintf("Unknown transaction destination: %s", movement.Destination)
	}

	e.logger.Info("Movement processed",
		"order", movement.Order,
		"sub_order", movement.SubOrder,
		"result", result,
	)

	return result, nil
}

// processStripe generates a fresh reference and back-fills only Lines whose
// identifier is empty. Re-invocation with already-populated lines leaves
// them untouched, which keeps the step idempotent.
func (e *MovementExecutor) processStripe(movement *transaction.Movement) string {
	uniqueID := strings.ToUpper(uuid.New().String())

	for i := range movement.Lines {
		if movement.Lines[i].UniqueID == "" {
			movement.Lines[i].UniqueID = uniqueID
		}
	}

	return fmt.Sprintf("Stripe movement processed successfully. TransactionType: %s, Amount: %v, UniqueId: %s",
		movement.Type, movement.Amount, uniqueID)
}

func (e *MovementExecutor) processBalance(movement *transaction.Movement) string {
	var profileID int64
	if movement.Balance != nil {
		profileID = movement.Balance.ProfileID
	}

	return fmt.Sprintf("Balance movement processed successfully. TransactionType: %s, Amount: %v, ProfileId: %d",
		movement.Type, movement.Amount, profileID)
}
