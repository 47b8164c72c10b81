package domain

import "time"

// Court tiers. The tier an agent litigates at is a function of its cumulative
// dispute losses, not an appeal chain on any single case.
const (
	TierDistrict uint8 = 0
	TierAppeals  uint8 = 1
	TierSupreme  uint8 = 2
)

var tierNames = [3]string{"district", "appeals", "supreme"}

func TierName(tier uint8) string {
	if tier > TierSupreme {
		tier = TierSupreme
	}
	return tierNames[tier]
}

// FeeSchedule is the judge fee per tier, indexed district/appeals/supreme.
type FeeSchedule [3]uint64

// DefaultFeeSchedule mirrors the deployed court: $0.05 / $0.10 / $0.20.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{50_000, 100_000, 200_000}
}

// TierForLosses maps cumulative losses to a court tier: 0 losses -> district,
// 1 -> appeals, 2 or more -> supreme.
func TierForLosses(losses uint8) uint8 {
	if losses >= 2 {
		return TierSupreme
	}
	return losses
}

// FeeFor returns the judge fee and tier for an agent with the given loss
// count. Monotonic in losses and capped at the supreme tier.
func (f FeeSchedule) FeeFor(losses uint8) (uint64, uint8) {
	tier := TierForLosses(losses)
	return f[tier], tier
}

// Dispute freezes equal stakes from both parties plus the tiered judge fee
// from the plaintiff. Once Resolved is set no further mutation is permitted.
type Dispute struct {
	DisputeID         uint64    `json:"dispute_id"`
	TransactionID     uint64    `json:"transaction_id"`
	Plaintiff         string    `json:"plaintiff"`
	Defendant         string    `json:"defendant"`
	Stake             uint64    `json:"stake"`
	JudgeFee          uint64    `json:"judge_fee"`
	Tier              uint8     `json:"tier"`
	PlaintiffEvidence string    `json:"plaintiff_evidence,omitempty"`
	DefendantEvidence string    `json:"defendant_evidence,omitempty"`
	Resolved          bool      `json:"resolved"`
	Winner            string    `json:"winner,omitempty"`
	FiledAt           time.Time `json:"filed_at"`
	ResolvedAt        time.Time `json:"resolved_at,omitempty"`
}
