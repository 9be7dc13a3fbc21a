// Package orchestrator sequences a saga's movements, pauses for external
// confirmation where required, and drives compensation on failure. The
// orchestration boundary never propagates errors past itself: every run
// produces a terminal result string and state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/executor"
	"github.com/paymentops/transaction-saga/internal/saga/retry"
)

// Config carries the orchestrator's fixed timing and retry parameters
type Config struct {
	SignalTimeout  time.Duration
	MovementPolicy retry.Policy
	WebhookPolicy  retry.Policy
}

// DefaultConfig returns the deployment defaults: 5 minute signal wait,
// 3x5m movement retries, 3x2m webhook retries.
func DefaultConfig() Config {
	return Config{
		SignalTimeout:  5 * time.Minute,
		MovementPolicy: retry.DefaultMovementPolicy(),
		WebhookPolicy:  retry.DefaultWebhookPolicy(),
	}
}

// Outcome is the terminal result of one saga run
type Outcome struct {
	Result string
	State  saga.State
}

// Orchestrator is the saga state machine. It consumes the durable substrate
// through saga.InstanceStore and never assumes a concrete implementation;
// store write failures are logged and never fail the saga.
type Orchestrator struct {
	executor    executor.StepExecutor
	retrier     *retry.Coordinator
	signals     SignalWaiter
	compensator Compensator
	webhooks    WebhookDeliverer
	store       saga.InstanceStore
	cfg         Config
	logger      *slog.Logger
}

// New creates a saga orchestrator
func New(
	exec executor.StepExecutor,
	retrier *retry.Coordinator,
	signals SignalWaiter,
	compensator Compensator,
	webhooks WebhookDeliverer,
	store saga.InstanceStore,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		executor:    exec,
		retrier:     retrier,
		signals:     signals,
		compensator: compensator,
		webhooks:    webhooks,
		store:       store,
		cfg:         cfg,
		logger:      logger,
	}
}

// Execute runs the saga to a terminal state. Movements are processed in
// (order asc, subOrder asc); Stripe movements suspend the saga on the
// signal gateway; a timeout or negative confirmation, or retry exhaustion
// on any movement, hands the applied prefix to the compensator.
func (o *Orchestrator) Execute(ctx context.Context, instance *saga.Instance, req *transaction.Request) Outcome {
	logger := o.logger.With("saga_id", instance.ID, "run_id", instance.RunID)
	logger.Info("Starting transaction saga",
		"operation_type", req.OperationType,
		"external_operation_id", req.ExternalOperationID,
		"movements", len(req.Movements),
	)

	movements := req.SortedMovements()
	results := make([]string, 0, len(movements)+1)
	applied := make([]transaction.Movement, 0, len(movements))

	for i := range movements {
		movement := &movements[i]

		name := fmt.Sprintf("movement-%d-%d", movement.Order, movement.SubOrder)
		summary, err := o.retrier.Run(ctx, name, o.cfg.MovementPolicy, func(ctx context.Context) (string, error) {
			return o.executor.Execute(ctx, movement)
		})
		if err != nil {
			logger.Error("Movement failed after retries, starting rollback",
				"order", movement.Order,
				"sub_order", movement.SubOrder,
				"error", err,
			)
			return o.fail(ctx, instance, applied, err.Error(), logger)
		}

		results = append(results, summary)
		applied = append(applied, *movement)
		o.checkpoint(ctx, instance, applied, logger)

		if strings.EqualFold(string(movement.Destination), string(transaction.DestinationStripe)) {
			logger.Info("Stripe movement processed, waiting for confirmation")
			o.transition(ctx, instance, saga.StateAwaitingSignal, logger)

			confirmation := o.signals.AwaitConfirmation(ctx, instance.ID, o.cfg.SignalTimeout)
			if !confirmation.Success {
				logger.Warn("Stripe confirmation negative or timed out, starting rollback",
					"received", confirmation.Received,
					"message", confirmation.Message,
				)
				return o.fail(ctx, instance, applied, confirmation.Message, logger)
			}

			logger.Info("Stripe confirmation received, continuing")
			o.transition(ctx, instance, saga.StateRunning, logger)
		}
	}

	// The business transaction is economically final here: webhook delivery
	// failures are recorded in the result but never trigger compensation.
	if req.CallbackURL != "" {
		logger.Info("Delivering completion webhook", "callback_url", req.CallbackURL)
		summary, err := o.retrier.Run(ctx, "webhook-delivery", o.cfg.WebhookPolicy, func(ctx context.Context) (string, error) {
			return o.webhooks.Deliver(ctx, req.CallbackURL, req)
		})
		if err != nil {
			logger.Error("Webhook delivery failed after retries", "callback_url", req.CallbackURL, "error", err)
			summary = fmt.Sprintf("Webhook delivery failed: %s", err.Error())
		}
		results = append(results, summary)
	}

	finalResult := strings.Join(results, "; ")
	o.complete(ctx, instance, saga.StateCompleted, finalResult, logger)
	logger.Info("Transaction saga completed successfully")

	return Outcome{Result: finalResult, State: saga.StateCompleted}
}

// fail runs compensation as a child saga identified by {ownerId}-rollback
// and drives the instance to Failed.
func (o *Orchestrator) fail(ctx context.Context, instance *saga.Instance, applied []transaction.Movement, reason string, logger *slog.Logger) Outcome {
	o.transition(ctx, instance, saga.StateCompensating, logger)

	rollbackID := saga.RollbackID(instance.ID)
	child := &saga.Instance{
		ID:                  rollbackID,
		RunID:               instance.RunID,
		ProfileID:           instance.ProfileID,
		ExternalOperationID: instance.ExternalOperationID,
		OperationType:       instance.OperationType,
		State:               saga.StateRunning,
		AppliedMovements:    applied,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := o.store.Create(ctx, child, saga.ReusePolicyAllowDuplicate); err != nil {
		logger.Error("Failed to register rollback saga", "rollback_id", rollbackID, "error", err)
	}

	rollbackResult := o.compensator.Compensate(ctx, applied, instance.ID, reason)

	if err := o.store.Complete(ctx, rollbackID, saga.StateCompleted, rollbackResult); err != nil {
		logger.Error("Failed to complete rollback saga record", "rollback_id", rollbackID, "error", err)
	}

	finalResult := fmt.Sprintf("Transaction failed. Rollback initiated: %s", rollbackResult)
	o.complete(ctx, instance, saga.StateFailed, finalResult, logger)
	logger.Warn("Transaction saga failed", "reason", reason)

	return Outcome{Result: finalResult, State: saga.StateFailed}
}

func (o *Orchestrator) transition(ctx context.Context, instance *saga.Instance, state saga.State, logger *slog.Logger) {
	instance.State = state
	if err := o.store.UpdateState(ctx, instance.ID, state); err != nil {
		logger.Error("Failed to persist state transition", "state", state, "error", err)
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, instance *saga.Instance, applied []transaction.Movement, logger *slog.Logger) {
	instance.AppliedMovements = applied
	if err := o.store.SetAppliedMovements(ctx, instance.ID, applied); err != nil {
		logger.Error("Failed to checkpoint applied movements", "applied", len(applied), "error", err)
	}
}

func (o *Orchestrator) complete(ctx context.Context, instance *saga.Instance, state saga.State, result string, logger *slog.Logger) {
	instance.State = state
	instance.Result = result
	if err := o.store.Complete(ctx, instance.ID, state, result); err != nil {
		logger.Error("Failed to persist terminal state", "state", state, "error", err)
	}
}
