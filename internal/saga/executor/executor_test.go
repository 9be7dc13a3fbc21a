package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestMovementExecutor_Execute_Stripe(t *testing.T) {
	ctx := context.Background()
	exec := NewMovementExecutor(newTestLogger())

	t.Run("SummaryAndLineBackfill", func(t *testing.T) {
		movement := &transaction.Movement{
			Order:       1,
			SubOrder:    1,
			Destination: transaction.DestinationStripe,
			Type:        transaction.TypeChargeStripeAccount,
			Amount:      79.75,
			Lines: []transaction.Line{
				{LineType: "Integration", Amount: 79.75},
			},
		}

		result, err := exec.Execute(ctx, movement)
		require.NoError(t, err)

		require.NotEmpty(t, movement.Lines[0].UniqueID)
		assert.Equal(t, strings.ToUpper(movement.Lines[0].UniqueID), movement.Lines[0].UniqueID)

		expected := fmt.Sprintf("Stripe movement processed successfully. TransactionType: %s, Amount: %v, UniqueId: %s",
			transaction.TypeChargeStripeAccount, 79.75, movement.Lines[0].UniqueID)
		assert.Equal(t, expected, result)
	})

	t.Run("PopulatedLineIDsAreNotTouched", func(t *testing.T) {
		movement := &transaction.Movement{
			Order:       1,
			SubOrder:    1,
			Destination: transaction.DestinationStripe,
			Type:        transaction.TypeChargeStripeAccount,
			Amount:      10,
			Lines: []transaction.Line{
				{LineType: "Integration", Amount: 10, UniqueID: "EXISTING-ID"},
				{LineType: "Postage", Amount: 0},
			},
		}

		_, err := exec.Execute(ctx, movement)
		require.NoError(t, err)

		assert.Equal(t, "EXISTING-ID", movement.Lines[0].UniqueID)
		assert.NotEmpty(t, movement.Lines[1].UniqueID)
		assert.NotEqual(t, "EXISTING-ID", movement.Lines[1].UniqueID)
	})

	t.Run("CaseInsensitiveDestination", func(t *testing.T) {
		movement := &transaction.Movement{
			Order:       1,
			SubOrder:    1,
			Destination: "STRIPE",
			Type:        transaction.TypeChargeStripeAccount,
			Amount:      5,
		}

		result, err := exec.Execute(ctx, movement)
		require.NoError(t, err)
		assert.Contains(t, result, "Stripe movement processed successfully")
	})
}

func TestMovementExecutor_Execute_Balance(t *testing.T) {
	ctx := context.Background()
	exec := NewMovementExecutor(newTestLogger())

	t.Run("WithProfile", func(t *testing.T) {
		movement := &transaction.Movement{
			Order:       2,
			SubOrder:    1,
			Destination: transaction.DestinationBalance,
			Type:        transaction.TypeCreditStripeFunds,
			Amount:      79.75,
			Balance:     &transaction.BalanceFields{ProfileID: 42},
		}

		result, err := exec.Execute(ctx, movement)
		require.NoError(t, err)

		expected := fmt.Sprintf("Balance movement processed successfully. TransactionType: %s, Amount: %v, ProfileId: %d",
			transaction.TypeCreditStripeFunds, 79.75, int64(42))
		assert.Equal(t, expected, result)
	})

	t.Run("NilBalanceFieldsDefaultsProfileToZero", func(t *testing.T) {
		movement := &transaction.Movement{
			Order:       2,
			SubOrder:    1,
			Destination: transaction.DestinationBalance,
			Type:        transaction.TypeDebitStripeFunds,
			Amount:      -3,
		}

		result, err := exec.Execute(ctx, movement)
		require.NoError(t, err)
		assert.Contains(t, result, "ProfileId: 0")
	})
}

func TestMovementExecutor_Execute_UnknownDestination(t *testing.T) {
	ctx := context.Background()
	exec := NewMovementExecutor(newTestLogger())

	movement := &transaction.Movement{
		Order:       1,
		SubOrder:    1,
		Destination: "PayPal",
		Type:        "ChargePayPal",
		Amount:      1,
	}

	result, err := exec.Execute(ctx, movement)
	require.NoError(t, err, "unknown destinations must not fail the saga")
	assert.Equal(t, "Unknown transaction destination: PayPal", result)
}
