package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EvidenceCommit is a hash-commitment record, not a proof: the ledger never
// verifies the hash against anything. Overwrite is allowed, last write wins.
type EvidenceCommit struct {
	Key            string    `json:"key"`
	InteractionKey string    `json:"interaction_key"`
	Committer      string    `json:"committer"`
	EvidenceHash   string    `json:"evidence_hash"`
	CommittedAt    time.Time `json:"committed_at"`
}

// EvidenceKey derives the storage key from the interaction identifier and
// the committing agent, so both parties to one interaction can commit
// independently without collision.
func EvidenceKey(interactionKey, committer string) string {
	sum := sha256.Sum256([]byte(interactionKey + "\x00" + committer))
	return hex.EncodeToString(sum[:])
}
