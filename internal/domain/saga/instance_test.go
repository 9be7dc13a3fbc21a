package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

func TestInstanceID(t *testing.T) {
	assert.Equal(t, "operation-MailOrder-10000", InstanceID("MailOrder", "10000"))
}

func TestRollbackID(t *testing.T) {
	assert.Equal(t, "operation-MailOrder-10000-rollback", RollbackID("operation-MailOrder-10000"))
}

func TestExternalDomainID(t *testing.T) {
	assert.Equal(t, "external-domain-MailOrder-10000", ExternalDomainID("MailOrder", "10000"))
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.False(t, StateAwaitingSignal.IsTerminal())
	assert.False(t, StateCompensating.IsTerminal())
}

func TestParseReusePolicy(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ReusePolicy
	}{
		{"RejectDuplicate", "reject-duplicate", ReusePolicyRejectDuplicate},
		{"AllowDuplicate", "allow-duplicate", ReusePolicyAllowDuplicate},
		{"AllowDuplicateFailedOnly", "allow-duplicate-failed-only", ReusePolicyAllowDuplicateFailed},
		{"UnknownFallsBackToReject", "something-else", ReusePolicyRejectDuplicate},
		{"EmptyFallsBackToReject", "", ReusePolicyRejectDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReusePolicy(tt.input))
		})
	}
}

func TestNewInstance(t *testing.T) {
	req := &transaction.Request{
		ProfileID:           7,
		ExternalOperationID: "10000",
		OperationType:       "MailOrder",
		Movements: []transaction.Movement{
			{Order: 1, SubOrder: 1, Destination: transaction.DestinationStripe, Type: transaction.TypeChargeStripeAccount},
		},
	}

	instance := NewInstance("run-1", req)

	require.NotNil(t, instance)
	assert.Equal(t, "operation-MailOrder-10000", instance.ID)
	assert.Equal(t, "run-1", instance.RunID)
	assert.Equal(t, int64(7), instance.ProfileID)
	assert.Equal(t, StateRunning, instance.State)
	assert.Empty(t, instance.AppliedMovements)
	assert.False(t, instance.CreatedAt.IsZero())
}
