package ports

import "context"

// IdentityGate is the external identity-membership check. The ledger only
// ever uses the count as a boolean (> 0 means the agent holds an identity).
type IdentityGate interface {
	MembershipCount(ctx context.Context, agent string) (uint64, error)
}

// ReputationNotifier pushes score deltas to the external reputation
// registry. Callers treat failures as best-effort and discard them.
type ReputationNotifier interface {
	Notify(ctx context.Context, agent, category string, delta int64) error
}

// RulingAuthority decides whether a principal may submit a binding ruling.
// Injected so a quorum or multisig policy can replace the single judge key
// without touching settlement logic.
type RulingAuthority interface {
	IsJudge(ctx context.Context, principal string) (bool, error)
}
