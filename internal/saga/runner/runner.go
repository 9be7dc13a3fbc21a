// Package runner hosts concurrent saga executions. Each saga instance runs
// as one sequential unit of work on a shared worker pool; instances with
// different ids are fully independent. The dedup registry is the only
// cross-instance shared structure.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/saga/orchestrator"
	"github.com/paymentops/transaction-saga/internal/saga/signal"
)

// EventPublisher publishes terminal saga lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Runner accepts start/signal requests, enforces the reuse policy through
// the instance store, and executes sagas on the worker pool.
type Runner struct {
	baseCtx context.Context
	pool    *ants.Pool
	orch    *orchestrator.Orchestrator
	store   saga.InstanceStore
	archive saga.ArchiveRepository
	events  EventPublisher
	gateway *signal.Gateway
	policy  saga.ReusePolicy
	logger  *slog.Logger
}

// New creates a runner backed by a worker pool of the given size. baseCtx
// bounds the lifetime of in-flight sagas, not of the requests that started
// them.
func New(
	baseCtx context.Context,
	poolSize int,
	orch *orchestrator.Orchestrator,
	store saga.InstanceStore,
	archive saga.ArchiveRepository,
	events EventPublisher,
	gateway *signal.Gateway,
	policy saga.ReusePolicy,
	logger *slog.Logger,
) (*Runner, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Runner{
		baseCtx: baseCtx,
		pool:    pool,
		orch:    orch,
		store:   store,
		archive: archive,
		events:  events,
		gateway: gateway,
		policy:  policy,
		logger:  logger,
	}, nil
}

// StartSaga validates the request, registers the instance under the reuse
// policy, and submits the saga for asynchronous execution. Returns
// saga.ErrDuplicateInstance when the policy rejects the id.
func (r *Runner) StartSaga(ctx context.Context, req *transaction.Request) (*saga.Instance, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	instance := saga.NewInstance(uuid.New().String(), req)

	if err := r.store.Create(ctx, instance, r.policy); err != nil {
		return nil, err
	}

	r.logger.Info("Saga instance registered",
		"saga_id", instance.ID,
		"run_id", instance.RunID,
		"reuse_policy", r.policy,
	)

	if err := r.pool.Submit(func() {
		r.run(instance, req)
	}); err != nil {
		r.logger.Error("Failed to submit saga to worker pool", "saga_id", instance.ID, "error", err)
		// A row stuck in RUNNING would block the id forever under
		// reject-duplicate, so the unscheduled instance is failed in place.
		if completeErr := r.store.Complete(ctx, instance.ID, saga.StateFailed, "Saga was not scheduled: "+err.Error()); completeErr != nil {
			r.logger.Error("Failed to mark unscheduled saga as failed", "saga_id", instance.ID, "error", completeErr)
		}
		return nil, err
	}

	return instance, nil
}

// Signal routes an external confirmation to the saga's mailbox. Delivery
// succeeds even when no await is pending (the confirmation is buffered);
// it fails only when no instance was ever created under the id.
func (r *Runner) Signal(ctx context.Context, sagaID string, success bool, message string) error {
	if _, err := r.store.Get(ctx, sagaID); err != nil {
		return err
	}

	r.gateway.Deliver(sagaID, success, message)
	return nil
}

// GetInstance returns the current durable view of a saga. Instances missing
// from the registry are looked up in the archive, so status queries keep
// working after registry rows have been purged.
func (r *Runner) GetInstance(ctx context.Context, sagaID string) (*saga.Instance, error) {
	instance, err := r.store.Get(ctx, sagaID)
	if err == nil || !errors.Is(err, saga.ErrInstanceNotFound) || r.archive == nil {
		return instance, err
	}

	record, archiveErr := r.archive.GetBySagaID(ctx, sagaID)
	if archiveErr != nil {
		return nil, err
	}

	return &saga.Instance{
		ID:                  record.SagaID,
		RunID:               record.RunID,
		ProfileID:           record.ProfileID,
		ExternalOperationID: record.ExternalOperationID,
		OperationType:       record.OperationType,
		State:               record.State,
		Result:              record.Result,
		CreatedAt:           record.CompletedAt,
		UpdatedAt:           record.CompletedAt,
	}, nil
}

// Running reports the number of sagas currently executing
func (r *Runner) Running() int {
	return r.pool.Running()
}

// Shutdown releases the worker pool
func (r *Runner) Shutdown() {
	r.logger.Info("Shutting down saga runner", "running_sagas", r.pool.Running())
	r.pool.Release()
}

func (r *Runner) run(instance *saga.Instance, req *transaction.Request) {
	outcome := r.orch.Execute(r.baseCtx, instance, req)

	r.gateway.Forget(instance.ID)

	completedAt := time.Now().UTC()

	if r.archive != nil {
		record := &saga.ArchiveRecord{
			SagaID:              instance.ID,
			RunID:               instance.RunID,
			ProfileID:           instance.ProfileID,
			ExternalOperationID: instance.ExternalOperationID,
			OperationType:       instance.OperationType,
			State:               outcome.State,
			Result:              outcome.Result,
			MovementsApplied:    len(instance.AppliedMovements),
			CompletedAt:         completedAt,
		}
		if err := r.archive.Save(r.baseCtx, record); err != nil {
			r.logger.Error("Failed to archive terminal saga", "saga_id", instance.ID, "error", err)
		}
	}

	if r.events != nil {
		event := saga.Event{
			SagaID:      instance.ID,
			RunID:       instance.RunID,
			State:       outcome.State,
			Result:      outcome.Result,
			CompletedAt: completedAt,
		}
		if err := r.events.Publish(r.baseCtx, instance.ID, event); err != nil {
			r.logger.Error("Failed to publish saga lifecycle event", "saga_id", instance.ID, "error", err)
		}
	}
}
