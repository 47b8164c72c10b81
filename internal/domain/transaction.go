package domain

import "time"

const (
	TransactionStatusRequested = "requested"
	TransactionStatusFulfilled = "fulfilled"
	TransactionStatusCompleted = "completed"
	TransactionStatusDisputed  = "disputed"
)

// DefaultFeeRateBps is the protocol fee taken from the provider payout on
// settlement, in basis points.
const DefaultFeeRateBps uint64 = 100

// DefaultAutoCompleteGrace is how long after fulfillment anyone may force
// settlement of an unconfirmed transaction.
const DefaultAutoCompleteGrace = time.Hour

// Transaction is one service call. Payment is frozen from the consumer at
// request time and held by the ledger until settlement or ruling. DisputeID
// is meaningful only while Status is disputed.
type Transaction struct {
	TransactionID uint64    `json:"transaction_id"`
	ServiceID     uint64    `json:"service_id"`
	Consumer      string    `json:"consumer"`
	Provider      string    `json:"provider"`
	Payment       uint64    `json:"payment"`
	RequestHash   string    `json:"request_hash"`
	ResponseHash  string    `json:"response_hash,omitempty"`
	Status        string    `json:"status"`
	DisputeID     uint64    `json:"dispute_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	FulfilledAt   time.Time `json:"fulfilled_at,omitempty"`
}

// ProtocolFee computes the settlement fee with truncating integer division.
// The remainder stays with the payout side (payout = payment - fee).
func ProtocolFee(payment, feeRateBps uint64) uint64 {
	return payment * feeRateBps / 10_000
}
