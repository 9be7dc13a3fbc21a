// Package relay lets one orchestration domain start a saga owned by a
// remote domain and block until that saga reports a terminal result. The
// relay performs no retries of its own: the remote saga's retry and
// compensation machinery is responsible for resilience.
package relay

import (
	"context"
	"log/slog"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// Handle identifies a started remote saga
type Handle struct {
	SagaID string
	RunID  string
}

// RemoteService starts a remote durable unit of work under its
// deterministic id and awaits its completion. Implementations own the
// transport; the relay is decoupled from it.
type RemoteService interface {
	Start(ctx context.Context, req *transaction.Request) (Handle, error)
	AwaitResult(ctx context.Context, handle Handle) (string, error)
}

// Relay invokes a remote saga synchronously from inside a local
// orchestration. A relay failure propagates as a terminal failure of the
// calling saga; the relay step has no movements of its own to undo.
type Relay struct {
	remote RemoteService
	logger *slog.Logger
}

// New creates a relay over the given remote service
func New(remote RemoteService, logger *slog.Logger) *Relay {
	return &Relay{remote: remote, logger: logger}
}

// Invoke starts the remote saga and blocks for its terminal result string.
// The remote saga absorbs its own business failures into that string; only
// transport-level problems surface as errors here.
func (r *Relay) Invoke(ctx context.Context, req *transaction.Request) (string, error) {
	handle, err := r.remote.Start(ctx, req)
	if err != nil {
		r.logger.Error("Failed to start remote saga",
			"operation_type", req.OperationType,
			"external_operation_id", req.ExternalOperationID,
			"error", err,
		)
		return "", err
	}

	r.logger.Info("Remote saga started, awaiting terminal result",
		"saga_id", handle.SagaID,
		"run_id", handle.RunID,
	)

	result, err := r.remote.AwaitResult(ctx, handle)
	if err != nil {
		r.logger.Error("Remote saga await failed", "saga_id", handle.SagaID, "error", err)
		return "", err
	}

	r.logger.Info("Remote saga reached terminal state", "saga_id", handle.SagaID)
	return result, nil
}
