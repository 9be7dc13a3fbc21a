package relay

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paymentops/transaction-saga/internal/domain/transaction"
)

// BuildTransactionRequest constructs the fully-formed transaction request
// for a caller that only holds a coarse identifier and operation type: a
// Stripe charge followed by the pair of balance movements that allocate the
// charged funds.
func BuildTransactionRequest(profileID int64, externalOperationID, operationType, appCaller, callbackURL string) *transaction.Request {
	operationUUID := strings.ToUpper(uuid.New().String())
	transactionUUID := strings.ToUpper(uuid.New().String())
	occurredAt := time.Now().UTC()

	const total = 79.75

	return &transaction.Request{
		ProfileID:           profileID,
		ExternalOperationID: externalOperationID,
		OperationType:       operationType,
		AppCaller:           appCaller,
		CallbackURL:         callbackURL,
		Movements: []transaction.Movement{
			{
				Order:           1,
				SubOrder:        1,
				OperationUUID:   operationUUID,
				TransactionUUID: transactionUUID,
				Destination:     transaction.DestinationStripe,
				Type:            transaction.TypeChargeStripeAccount,
				ExternalID:      "RadiusMailOrderId - 10000",
				OccurredAt:      occurredAt,
				Amount:          total,
				Stripe: &transaction.StripeFields{
					PartnerProfileID: "XXXX",
					ExtrasFields1:    "ExtrasFields2",
				},
				Lines: []transaction.Line{
					{LineType: "Integration", Amount: total},
				},
			},
			{
				Order:           2,
				SubOrder:        1,
				OperationUUID:   operationUUID,
				TransactionUUID: transactionUUID,
				Destination:     transaction.DestinationBalance,
				Type:            transaction.TypeCreditStripeFunds,
				ExternalID:      "RadiusMailOrderId - 10000",
				OccurredAt:      occurredAt,
				Amount:          total,
				Balance: &transaction.BalanceFields{
					ProfileID: profileID,
				},
			},
			{
				Order:           2,
				SubOrder:        2,
				OperationUUID:   operationUUID,
				TransactionUUID: transactionUUID,
				Destination:     transaction.DestinationBalance,
				Type:            transaction.TypeChargeStripeAccount,
				ExternalID:      "RadiusMailOrderId - 10000",
				OccurredAt:      occurredAt,
				Amount:          -total,
				Balance: &transaction.BalanceFields{
					ProfileID: profileID,
				},
				Lines: []transaction.Line{
					{LineType: "LargeHandwrittenCardA8", Amount: -70.75},
					{LineType: "FirstClassPostage", Amount: -6.25},
					{LineType: "RecipientData", Amount: -2.75},
				},
			},
		},
	}
}
