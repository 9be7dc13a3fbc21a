package orchestrator

import (
	"context"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/signal"
)

// SignalWaiter suspends a saga until an external confirmation arrives or
// the timeout elapses.
type SignalWaiter interface {
	AwaitConfirmation(ctx context.Context, sagaID string, timeout time.Duration) signal.Confirmation
}

// Compensator reverts applied movements in reverse order and returns the
// rollback summary.
type Compensator interface {
	Compensate(ctx context.Context, applied []transaction.Movement, ownerID, reason string) string
}

// WebhookDeliverer posts the completion callback. Non-2xx and transport
// failures are returned as retryable errors.
type WebhookDeliverer interface {
	Deliver(ctx context.Context, callbackURL string, req *transaction.Request) (string, error)
}
