package application

import (
	"context"
	"strings"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type CommitEvidenceInput struct {
	InteractionKey string `json:"interaction_key"`
	EvidenceHash   string `json:"evidence_hash"`
}

// CommitEvidence records a hash commitment for an interaction. The store
// never verifies the hash; it only timestamps who committed what, so a later
// reveal can be checked off-ledger. Re-committing the same interaction key
// overwrites the caller's previous commitment.
func (s *Service) CommitEvidence(ctx context.Context, actor Actor, input CommitEvidenceInput) (domain.EvidenceCommit, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.EvidenceCommit{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.EvidenceCommit{}, domain.ErrIdempotencyRequired }
	input.InteractionKey = strings.TrimSpace(input.InteractionKey)
	input.EvidenceHash = strings.TrimSpace(input.EvidenceHash)
	if input.InteractionKey == "" || input.EvidenceHash == "" { return domain.EvidenceCommit{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.EvidenceCommit
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.EvidenceCommit{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.EvidenceCommit{}, err }
	committer, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.EvidenceCommit{}, err }
	now := s.nowFn()
	commit := domain.EvidenceCommit{Key: domain.EvidenceKey(input.InteractionKey, committer.Address), InteractionKey: input.InteractionKey, Committer: committer.Address, EvidenceHash: input.EvidenceHash, CommittedAt: now}
	if err := s.evidence.Put(ctx, commit); err != nil { return domain.EvidenceCommit{}, err }
	if err := s.enqueueEvidenceCommitted(ctx, commit, actor.RequestID, now); err != nil { return domain.EvidenceCommit{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, commit)
	return commit, nil
}

// GetEvidence looks up the commitment one agent made for one interaction.
func (s *Service) GetEvidence(ctx context.Context, actor Actor, interactionKey, committer string) (domain.EvidenceCommit, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.EvidenceCommit{}, domain.ErrUnauthorized }
	interactionKey = strings.TrimSpace(interactionKey)
	committer = domain.NormalizeAddress(committer)
	if interactionKey == "" || committer == "" { return domain.EvidenceCommit{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evidence.GetByKey(ctx, domain.EvidenceKey(interactionKey, committer))
}
