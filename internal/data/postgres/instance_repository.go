// Package postgres provides the PostgreSQL implementation of the saga
// instance store: the durable state layout plus the identifier dedup
// registry enforcing the reuse policy.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
	"github.com/paymentops/transaction-saga/internal/platform/persistence"
)

// txRunner runs a function inside a database transaction
type txRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// InstanceRepository implements saga.InstanceStore on PostgreSQL
type InstanceRepository struct {
	db      txRunner
	querier persistence.Querier
	logger  *slog.Logger
}

// NewInstanceRepository creates a new PostgreSQL saga instance repository
func NewInstanceRepository(logger *slog.Logger, db *persistence.PostgresDB) *InstanceRepository {
	return &InstanceRepository{
		db:      db,
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create registers a new saga instance, enforcing the reuse policy with
// atomic check-and-create semantics: the existing row (if any) is locked
// before the policy decision, so two concurrent creates for the same id
// cannot both succeed under reject-duplicate.
func (r *InstanceRepository) Create(ctx context.Context, instance *saga.Instance, policy saga.ReusePolicy) error {
	applied, err := json.Marshal(instance.AppliedMovements)
	if err != nil {
		return fmt.Errorf("failed to marshal applied movements: %w", err)
	}

	return r.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var existingState saga.State
		err := tx.QueryRow(ctx,
			`SELECT state FROM saga_instances WHERE id = $1 FOR UPDATE`,
			instance.ID,
		).Scan(&existingState)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// No prior instance, fall through to insert
		case err != nil:
			return fmt.Errorf("failed to check for existing saga instance: %w", err)
		default:
			allowed := false
			switch policy {
			case saga.ReusePolicyAllowDuplicate:
				allowed = true
			case saga.ReusePolicyAllowDuplicateFailed:
				allowed = existingState == saga.StateFailed
			}
			if !allowed {
				return saga.ErrDuplicateInstance{ID: instance.ID}
			}

			_, err = tx.Exec(ctx,
				`UPDATE saga_instances
				 SET run_id = $2, profile_id = $3, external_operation_id = $4, operation_type = $5,
				     state = $6, applied_movements = $7, result = NULL, created_at = $8, updated_at = $8
				 WHERE id = $1`,
				instance.ID,
				instance.RunID,
				instance.ProfileID,
				instance.ExternalOperationID,
				instance.OperationType,
				instance.State,
				applied,
				instance.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to restart saga instance: %w", err)
			}
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO saga_instances
			 (id, run_id, profile_id, external_operation_id, operation_type, state, applied_movements, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			instance.ID,
			instance.RunID,
			instance.ProfileID,
			instance.ExternalOperationID,
			instance.OperationType,
			instance.State,
			applied,
			instance.CreatedAt,
			instance.UpdatedAt,
		)
		if err != nil {
			// FOR UPDATE does not lock a row that does not exist yet, so
			// two concurrent first-time creates can both reach the insert.
			// The primary key settles the race; the loser is a duplicate.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return saga.ErrDuplicateInstance{ID: instance.ID}
			}
			return fmt.Errorf("failed to create saga instance: %w", err)
		}
		return nil
	})
}

// UpdateState persists a state transition
func (r *InstanceRepository) UpdateState(ctx context.Context, id string, state saga.State) error {
	tag, err := r.querier.Exec(ctx,
		`UPDATE saga_instances SET state = $2, updated_at = $3 WHERE id = $1`,
		id, state, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to update saga state", "saga_id", id, "state", state, "error", err)
		return fmt.Errorf("failed to update saga state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return saga.ErrInstanceNotFound
	}
	return nil
}

// SetAppliedMovements checkpoints the applied-movements prefix
func (r *InstanceRepository) SetAppliedMovements(ctx context.Context, id string, movements []transaction.Movement) error {
	applied, err := json.Marshal(movements)
	if err != nil {
		return fmt.Errorf("failed to marshal applied movements: %w", err)
	}

	tag, err := r.querier.Exec(ctx,
		`UPDATE saga_instances SET applied_movements = $2, updated_at = $3 WHERE id = $1`,
		id, applied, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to checkpoint applied movements", "saga_id", id, "error", err)
		return fmt.Errorf("failed to checkpoint applied movements: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return saga.ErrInstanceNotFound
	}
	return nil
}

// Complete records the terminal state and result, which also marks the id
// terminal in the dedup registry.
func (r *InstanceRepository) Complete(ctx context.Context, id string, state saga.State, result string) error {
	tag, err := r.querier.Exec(ctx,
		`UPDATE saga_instances SET state = $2, result = $3, updated_at = $4 WHERE id = $1`,
		id, state, result, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to complete saga instance", "saga_id", id, "error", err)
		return fmt.Errorf("failed to complete saga instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return saga.ErrInstanceNotFound
	}
	return nil
}

// Get returns the durable view of a saga instance
func (r *InstanceRepository) Get(ctx context.Context, id string) (*saga.Instance, error) {
	var (
		instance saga.Instance
		applied  []byte
		result   *string
	)
	err := r.querier.QueryRow(ctx,
		`SELECT id, run_id, profile_id, external_operation_id, operation_type, state, applied_movements, result, created_at, updated_at
		 FROM saga_instances WHERE id = $1`,
		id,
	).Scan(
		&instance.ID,
		&instance.RunID,
		&instance.ProfileID,
		&instance.ExternalOperationID,
		&instance.OperationType,
		&instance.State,
		&applied,
		&result,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, saga.ErrInstanceNotFound
		}
		r.logger.Error("Failed to get saga instance", "saga_id", id, "error", err)
		return nil, fmt.Errorf("failed to get saga instance: %w", err)
	}

	if err := json.Unmarshal(applied, &instance.AppliedMovements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal applied movements: %w", err)
	}
	if result != nil {
		instance.Result = *result
	}

	return &instance, nil
}
