package domain

import (
	"math"
	"testing"
)

func TestCheckedAdd(t *testing.T) {
	if sum, ok := CheckedAdd(1, 2); !ok || sum != 3 {
		t.Fatalf("CheckedAdd(1, 2) = %d, %v", sum, ok)
	}
	if sum, ok := CheckedAdd(math.MaxUint64, 0); !ok || sum != math.MaxUint64 {
		t.Fatalf("CheckedAdd at the limit = %d, %v", sum, ok)
	}
	if _, ok := CheckedAdd(math.MaxUint64, 1); ok {
		t.Fatalf("wrap must be reported")
	}
}

func TestProtocolFeeTruncates(t *testing.T) {
	cases := []struct {
		payment, bps, want uint64
	}{
		{1_000_000, 100, 10_000},
		{99, 100, 0},
		{101, 100, 1},
		{0, 100, 0},
		{1_000_000, 0, 0},
		{10_000, 10_000, 10_000},
	}
	for _, c := range cases {
		if got := ProtocolFee(c.payment, c.bps); got != c.want {
			t.Fatalf("ProtocolFee(%d, %d) = %d, want %d", c.payment, c.bps, got, c.want)
		}
	}
}

func TestTierForLossesCapsAtSupreme(t *testing.T) {
	cases := map[uint8]uint8{0: TierDistrict, 1: TierAppeals, 2: TierSupreme, 3: TierSupreme, 200: TierSupreme}
	for losses, want := range cases {
		if got := TierForLosses(losses); got != want {
			t.Fatalf("TierForLosses(%d) = %d, want %d", losses, got, want)
		}
	}
}

func TestFeeScheduleMonotonic(t *testing.T) {
	schedule := DefaultFeeSchedule()
	prev := uint64(0)
	for losses := uint8(0); losses < 5; losses++ {
		fee, tier := schedule.FeeFor(losses)
		if fee < prev {
			t.Fatalf("fee decreased at losses=%d: %d < %d", losses, fee, prev)
		}
		if tier != TierForLosses(losses) {
			t.Fatalf("FeeFor tier mismatch at losses=%d: %d", losses, tier)
		}
		prev = fee
	}
	fee, tier := schedule.FeeFor(0)
	if fee != 50_000 || tier != TierDistrict {
		t.Fatalf("district quote wrong: fee=%d tier=%d", fee, tier)
	}
}

func TestTierNames(t *testing.T) {
	if TierName(TierDistrict) == TierName(TierSupreme) {
		t.Fatalf("tier names must be distinct")
	}
	if TierName(99) == "" {
		t.Fatalf("unknown tier must still render")
	}
}

func TestEvidenceKeyBindsCommitter(t *testing.T) {
	a := EvidenceKey("tx-42", "0xalice")
	b := EvidenceKey("tx-42", "0xbob")
	if a == b {
		t.Fatalf("same interaction, different committers must not collide")
	}
	if a != EvidenceKey("tx-42", "0xalice") {
		t.Fatalf("key must be deterministic")
	}
	// a separator-free concat of these two pairs would collide
	if EvidenceKey("ab", "c") == EvidenceKey("a", "bc") {
		t.Fatalf("key must not be ambiguous across field boundaries")
	}
}

func TestEligibility(t *testing.T) {
	var a Agent
	if a.Eligible(DefaultMinDeposit) {
		t.Fatalf("unregistered agent must not be eligible")
	}
	a.RegisteredAt = a.RegisteredAt.Add(1)
	a.Balance = DefaultMinDeposit - 1
	if a.Eligible(DefaultMinDeposit) {
		t.Fatalf("balance below the floor must not be eligible")
	}
	a.Balance = DefaultMinDeposit
	if !a.Eligible(DefaultMinDeposit) {
		t.Fatalf("registered agent at the floor must be eligible")
	}
}

func TestSuccessRate(t *testing.T) {
	var a Agent
	if a.SuccessRate() != 0 {
		t.Fatalf("zero transactions must not divide")
	}
	a.Stats.TotalTransactions = 4
	a.Stats.SuccessfulTransactions = 3
	if got := a.SuccessRate(); got != 75 {
		t.Fatalf("SuccessRate = %d, want 75", got)
	}
}

func TestNormalizeServiceStatus(t *testing.T) {
	if NormalizeServiceStatus(" Paused ") != ServiceStatusPaused {
		t.Fatalf("status not normalized")
	}
	if NormalizeServiceStatus("bogus") != "" {
		t.Fatalf("unknown status must normalize to empty")
	}
}

func TestNormalizeAddress(t *testing.T) {
	if NormalizeAddress("  0xABCdef ") != "0xabcdef" {
		t.Fatalf("address not lowercased and trimmed")
	}
}
