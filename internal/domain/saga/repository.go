package saga

import (
	"context"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// InstanceStore is the durable substrate the orchestrator runs on. Create
// must provide atomic check-and-create semantics: two concurrent creates for
// the same id under reject-duplicate must not both succeed. The orchestrator
// never assumes a concrete implementation.
type InstanceStore interface {
	// Create registers a new instance, honoring the reuse policy. Returns
	// ErrDuplicateInstance when the policy forbids starting.
	Create(ctx context.Context, instance *Instance, policy ReusePolicy) error

	// UpdateState persists a state transition
	UpdateState(ctx context.Context, id string, state State) error

	// SetAppliedMovements checkpoints the applied-movements prefix
	SetAppliedMovements(ctx context.Context, id string, movements []transaction.Movement) error

	// Complete records the terminal state and result for an instance
	Complete(ctx context.Context, id string, state State, result string) error

	// Get returns the instance or ErrInstanceNotFound
	Get(ctx context.Context, id string) (*Instance, error)
}

// ArchiveRecord is the immutable snapshot of a terminal saga
type ArchiveRecord struct {
	SagaID              string    `json:"saga_id" bson:"saga_id"`
	RunID               string    `json:"run_id" bson:"run_id"`
	ProfileID           int64     `json:"profile_id" bson:"profile_id"`
	ExternalOperationID string    `json:"external_operation_id" bson:"external_operation_id"`
	OperationType       string    `json:"operation_type" bson:"operation_type"`
	State               State     `json:"state" bson:"state"`
	Result              string    `json:"result" bson:"result"`
	MovementsApplied    int       `json:"movements_applied" bson:"movements_applied"`
	CompletedAt         time.Time `json:"completed_at" bson:"completed_at"`
}

// ArchiveRepository stores terminal saga snapshots for history queries
type ArchiveRepository interface {
	Save(ctx context.Context, record *ArchiveRecord) error
	GetBySagaID(ctx context.Context, sagaID string) (*ArchiveRecord, error)
}

// Event is published to the saga lifecycle topic when an instance reaches a
// terminal state.
type Event struct {
	SagaID      string    `json:"saga_id"`
	RunID       string    `json:"run_id"`
	State       State     `json:"state"`
	Result      string    `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
}
