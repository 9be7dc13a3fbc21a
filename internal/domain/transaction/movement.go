package transaction

import (
	"sort"
	"time"
)

// Destination identifies the external system a movement is applied against
type Destination string

const (
	DestinationStripe  Destination = "Stripe"
	DestinationBalance Destination = "Balance"
)

// Movement types that map to an explicit inverse operation. Anything else is
// reverted as Revert{Type}.
const (
	TypeChargeStripeAccount = "ChargeStripeAccount"
	TypeRefundStripeAccount = "RefundStripeAccount"
	TypeCreditStripeFunds   = "CreditStripeFunds"
	TypeDebitStripeFunds    = "DebitStripeFunds"
)

// Line is a sub-allocation within a movement. UniqueID is assigned by the
// step executor when empty; already-populated identifiers are never touched.
type Line struct {
	LineType string  `json:"line_type"`
	Amount   float64 `json:"line_amount"`
	UniqueID string  `json:"unique_id"`
}

// StripeFields carries destination-specific data for Stripe movements
type StripeFields struct {
	PartnerProfileID string `json:"partner_profile_id"`
	ExtrasFields1    string `json:"extras_fields_1,omitempty"`
}

// BalanceFields carries destination-specific data for Balance movements
type BalanceFields struct {
	ProfileID int64 `json:"profile_id"`
}

// Movement is one atomic sub-operation of a saga. Movements are immutable
// once constructed, except for executor-assigned Line identifiers.
type Movement struct {
	Order           int            `json:"order"`
	SubOrder        int            `json:"sub_order"`
	OperationUUID   string         `json:"operation_uuid"`
	TransactionUUID string         `json:"transaction_uuid"`
	Destination     Destination    `json:"destination"`
	Type            string         `json:"type"`
	ExternalID      string         `json:"external_id"`
	Amount          float64        `json:"amount"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Stripe          *StripeFields  `json:"stripe_fields,omitempty"`
	Balance         *BalanceFields `json:"balance_fields,omitempty"`
	Lines           []Line         `json:"lines,omitempty"`
}

// SortMovements orders movements by (order asc, subOrder asc), stable on
// ties so equal keys keep their original insertion order.
func SortMovements(movements []Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		if movements[i].Order != movements[j].Order {
			return movements[i].Order < movements[j].Order
		}
		return movements[i].SubOrder < movements[j].SubOrder
	})
}

// SortMovementsReverse orders movements by (order desc, subOrder desc), the
// exact reverse of forward execution order. Compensation reverts the
// last-applied movement first.
func SortMovementsReverse(movements []Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		if movements[i].Order != movements[j].Order {
			return movements[i].Order > movements[j].Order
		}
		return movements[i].SubOrder > movements[j].SubOrder
	})
}
