package saga

import (
	"fmt"
	"time"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// State captures where a saga instance is in its lifecycle
type State string

const (
	StateRunning        State = "RUNNING"
	StateAwaitingSignal State = "AWAITING_SIGNAL"
	StateCompensating   State = "COMPENSATING"
	StateCompleted      State = "COMPLETED"
	StateFailed         State = "FAILED"
)

// IsTerminal reports whether no further transitions can happen from s
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ReusePolicy governs whether a new saga may start under an identifier
// already used by a prior instance.
type ReusePolicy string

const (
	ReusePolicyRejectDuplicate      ReusePolicy = "reject-duplicate"
	ReusePolicyAllowDuplicate       ReusePolicy = "allow-duplicate"
	ReusePolicyAllowDuplicateFailed ReusePolicy = "allow-duplicate-failed-only"
)

// ParseReusePolicy maps a configuration string to a ReusePolicy, falling
// back to reject-duplicate for unrecognized values.
func ParseReusePolicy(s string) ReusePolicy {
	switch ReusePolicy(s) {
	case ReusePolicyAllowDuplicate, ReusePolicyAllowDuplicateFailed:
		return ReusePolicy(s)
	default:
		return ReusePolicyRejectDuplicate
	}
}

// InstanceID derives the deduplication key for a saga from its business
// identifiers: operation-{operationType}-{externalOperationId}.
func InstanceID(operationType, externalOperationID string) string {
	return fmt.Sprintf("operation-%s-%s", operationType, externalOperationID)
}

// RollbackID derives the child saga id used for a saga's compensation run
func RollbackID(ownerID string) string {
	return ownerID + "-rollback"
}

// ExternalDomainID derives the id of an external domain saga that delegates
// to a transaction saga: external-domain-{operationType}-{externalOperationId}.
func ExternalDomainID(operationType, externalOperationID string) string {
	return fmt.Sprintf("external-domain-%s-%s", operationType, externalOperationID)
}

// Instance is the durable unit of work. AppliedMovements is append-only
// during forward execution and is handed to the compensation engine in the
// exact state it had when compensation was triggered.
type Instance struct {
	ID                  string                 `json:"id"`
	RunID               string                 `json:"run_id"`
	ProfileID           int64                  `json:"profile_id"`
	ExternalOperationID string                 `json:"external_operation_id"`
	OperationType       string                 `json:"operation_type"`
	State               State                  `json:"state"`
	AppliedMovements    []transaction.Movement `json:"applied_movements"`
	Result              string                 `json:"result,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// NewInstance builds a fresh Running instance for the given request
func NewInstance(runID string, req *transaction.Request) *Instance {
	now := time.Now().UTC()
	return &Instance{
		ID:                  InstanceID(req.OperationType, req.ExternalOperationID),
		RunID:               runID,
		ProfileID:           req.ProfileID,
		ExternalOperationID: req.ExternalOperationID,
		OperationType:       req.OperationType,
		State:               StateRunning,
		AppliedMovements:    []transaction.Movement{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
