// Package compensation undoes a saga's already-applied movements in strict
// reverse order. Compensation is best-effort and always-complete: a failed
// reversal is recorded in the summary but never aborts the remaining ones.
package compensation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/executor"
	"github.com/paymentops/transaction-saga/internal/saga/retry"
)

// revertTypes maps movement types to their inverse operation. Unmapped
// types become Revert{OriginalType}.
var revertTypes = map[string]string{
	transaction.TypeChargeStripeAccount: transaction.TypeRefundStripeAccount,
	transaction.TypeRefundStripeAccount: transaction.TypeChargeStripeAccount,
	transaction.TypeCreditStripeFunds:   transaction.TypeDebitStripeFunds,
	transaction.TypeDebitStripeFunds:    transaction.TypeCreditStripeFunds,
}

// RevertType returns the inverse operation name for a movement type
func RevertType(originalType string) string {
	if mapped, ok := revertTypes[originalType]; ok {
		return mapped
	}
	return "Revert" + originalType
}

// Engine executes compensations through the step executor under the
// movement retry policy.
type Engine struct {
	executor executor.StepExecutor
	retrier  *retry.Coordinator
	policy   retry.Policy
	logger   *slog.Logger
}

// NewEngine creates a compensation engine
func NewEngine(exec executor.StepExecutor, retrier *retry.Coordinator, policy retry.Policy, logger *slog.Logger) *Engine {
	return &Engine{
		executor: exec,
		retrier:  retrier,
		policy:   policy,
		logger:   logger,
	}
}

// Compensate reverts every applied movement exactly once, last-applied
// first, and returns a joined summary of all outcomes plus the triggering
// reason. Individual failures surface as REVERT FAILED segments.
func (e *Engine) Compensate(ctx context.Context, applied []transaction.Movement, ownerID, reason string) string {
	e.logger.Info("Starting rollback",
		"owner_saga_id", ownerID,
		"reason", reason,
		"movements_to_revert", len(applied),
	)

	toRevert := make([]transaction.Movement, len(applied))
	copy(toRevert, applied)
	transaction.SortMovementsReverse(toRevert)

	results := make([]string, 0, len(toRevert))
	for i := range toRevert {
		movement := &toRevert[i]
		e.logger.Info("Reverting movement",
			"order", movement.Order,
			"sub_order", movement.SubOrder,
			"type", movement.Type,
			"destination", movement.Destination,
		)

		inverse := InvertMovement(movement)
		name := fmt.Sprintf("revert-movement-%d-%d", movement.Order, movement.SubOrder)
		result, err := e.retrier.Run(ctx, name, e.policy, func(ctx context.Context) (string, error) {
			return e.executor.Execute(ctx, &inverse)
		})
		if err != nil {
			e.logger.Error("Failed to revert movement",
				"owner_saga_id", ownerID,
				"order", movement.Order,
				"sub_order", movement.SubOrder,
				"error", err,
			)
			results = append(results, fmt.Sprintf("Order %d, SubOrder %d: REVERT FAILED - %s", movement.Order, movement.SubOrder, err.Error()))
			continue
		}

		results = append(results, fmt.Sprintf("Order %d, SubOrder %d: %s", movement.Order, movement.SubOrder, result))
	}

	summary := strings.Join(results, "; ")
	e.logger.Info("Rollback completed", "owner_saga_id", ownerID, "summary", summary)

	return fmt.Sprintf("Rollback completed. Reason: %s. Results: %s", reason, summary)
}

// InvertMovement builds the compensating movement: same identifiers and
// destination, mapped type, negated amounts, preserved line identifiers,
// fresh timestamp.
func InvertMovement(m *transaction.Movement) transaction.Movement {
	inverse := transaction.Movement{
		Order:           m.Order,
		SubOrder:        m.SubOrder,
		OperationUUID:   m.OperationUUID,
		TransactionUUID: m.TransactionUUID,
		Destination:     m.Destination,
		Type:            RevertType(m.Type),
		ExternalID:      m.ExternalID,
		Amount:          -m.Amount,
		OccurredAt:      time.Now().UTC(),
		Stripe:          m.Stripe,
		Balance:         m.Balance,
	}

	if len(m.Lines) > 0 {
		inverse.Lines = make([]transaction.Line, len(m.Lines))
		for i, line := range m.Lines {
			inverse.Lines[i] = transaction.Line{
				LineType: line.LineType,
				Amount:   -line.Amount,
				UniqueID: line.UniqueID,
			}
		}
	}

	return inverse
}
