package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

func TestBuildTransactionRequest(t *testing.T) {
	req := BuildTransactionRequest(42, "10000", "MailOrder", "external-domain", "http://cb")

	require.NoError(t, req.Validate())
	assert.Equal(t, int64(42), req.ProfileID)
	assert.Equal(t, "10000", req.ExternalOperationID)
	assert.Equal(t, "MailOrder", req.OperationType)
	assert.Equal(t, "external-domain", req.AppCaller)
	assert.Equal(t, "http://cb", req.CallbackURL)
	require.Len(t, req.Movements, 3)

	stripe := req.Movements[0]
	assert.Equal(t, 1, stripe.Order)
	assert.Equal(t, 1, stripe.SubOrder)
	assert.Equal(t, transaction.DestinationStripe, stripe.Destination)
	assert.Equal(t, transaction.TypeChargeStripeAccount, stripe.Type)
	assert.Equal(t, 79.75, stripe.Amount)
	require.Len(t, stripe.Lines, 1)
	assert.Equal(t, "Integration", stripe.Lines[0].LineType)
	assert.Equal(t, 79.75, stripe.Lines[0].Amount)
	assert.Empty(t, stripe.Lines[0].UniqueID, "line ids are assigned during execution")

	credit := req.Movements[1]
	assert.Equal(t, 2, credit.Order)
	assert.Equal(t, 1, credit.SubOrder)
	assert.Equal(t, transaction.DestinationBalance, credit.Destination)
	assert.Equal(t, transaction.TypeCreditStripeFunds, credit.Type)
	assert.Equal(t, 79.75, credit.Amount)
	require.NotNil(t, credit.Balance)
	assert.Equal(t, int64(42), credit.Balance.ProfileID)

	charge := req.Movements[2]
	assert.Equal(t, 2, charge.Order)
	assert.Equal(t, 2, charge.SubOrder)
	assert.Equal(t, transaction.TypeChargeStripeAccount, charge.Type)
	assert.Equal(t, -79.75, charge.Amount)
	require.Len(t, charge.Lines, 3)

	var lineTotal float64
	for _, line := range charge.Lines {
		lineTotal += line.Amount
	}
	assert.InDelta(t, -79.75, lineTotal, 0.001, "charge lines allocate the full amount")
}

func TestBuildTransactionRequest_UUIDsAreUppercaseAndShared(t *testing.T) {
	req := BuildTransactionRequest(1, "10000", "MailOrder", "", "")

	opUUID := req.Movements[0].OperationUUID
	txUUID := req.Movements[0].TransactionUUID
	require.NotEmpty(t, opUUID)
	require.NotEmpty(t, txUUID)
	assert.Equal(t, strings.ToUpper(opUUID), opUUID)
	assert.Equal(t, strings.ToUpper(txUUID), txUUID)

	for _, movement := range req.Movements {
		assert.Equal(t, opUUID, movement.OperationUUID, "all movements share one operation uuid")
		assert.Equal(t, txUUID, movement.TransactionUUID)
	}

	second := BuildTransactionRequest(1, "10000", "MailOrder", "", "")
	assert.NotEqual(t, opUUID, second.Movements[0].OperationUUID, "each build generates fresh uuids")
}
