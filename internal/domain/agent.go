package domain

import (
	"strings"
	"time"
)

// All amounts in this package are unsigned integers in micro-USDC (6 decimals).
const (
	DefaultMinDeposit uint64 = 100_000 // 0.10 USDC
)

// MaxLossTier caps the recorded loss counter. Losses beyond the cap still
// settle normally but no longer escalate the fee tier.
const MaxLossTier uint8 = 3

// CheckedAdd sums two amounts and reports whether the result fits in uint64.
// Every credit path goes through it so a wrapped balance cannot mint value.
func CheckedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

type AgentStats struct {
	TotalTransactions      uint64 `json:"total_transactions"`
	SuccessfulTransactions uint64 `json:"successful_transactions"`
	DisputesWon            uint64 `json:"disputes_won"`
	DisputesLost           uint64 `json:"disputes_lost"`
	TotalEarned            uint64 `json:"total_earned"`
	TotalSpent             uint64 `json:"total_spent"`
}

// Agent is a clearinghouse participant identified by an address-like
// principal. A zero RegisteredAt means the agent has never registered.
type Agent struct {
	Address      string     `json:"address"`
	Balance      uint64     `json:"balance"`
	RegisteredAt time.Time  `json:"registered_at"`
	Stats        AgentStats `json:"stats"`
	LossTier     uint8      `json:"loss_tier"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (a Agent) Registered() bool { return !a.RegisteredAt.IsZero() }

// Eligible reports whether the agent may take on new obligations: registered
// and holding at least the minimum deposit.
func (a Agent) Eligible(minDeposit uint64) bool {
	return a.Registered() && a.Balance >= minDeposit
}

// SuccessRate is the integer percentage of confirmed transactions, zero when
// the agent has none.
func (a Agent) SuccessRate() uint64 {
	if a.Stats.TotalTransactions == 0 {
		return 0
	}
	return a.Stats.SuccessfulTransactions * 100 / a.Stats.TotalTransactions
}

// NormalizeAddress canonicalizes a principal for use as a ledger key.
func NormalizeAddress(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
