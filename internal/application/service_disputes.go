package application

import (
	"context"
	"math"
	"strings"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type FileDisputeInput struct {
	TransactionID uint64 `json:"transaction_id"`
	Stake         uint64 `json:"stake"`
	EvidenceHash  string `json:"evidence_hash"`
}

type RespondDisputeInput struct {
	DisputeID    uint64 `json:"dispute_id"`
	EvidenceHash string `json:"evidence_hash"`
}

type SubmitRulingInput struct {
	DisputeID uint64 `json:"dispute_id"`
	Winner    string `json:"winner"`
}

// FileDispute escalates a fulfilled transaction to the court. Equal stakes
// are frozen from both parties up front; the plaintiff additionally fronts
// the judge fee for the tier its loss record puts it in. A defendant that
// cannot cover the matching stake blocks filing entirely.
func (s *Service) FileDispute(ctx context.Context, actor Actor, input FileDisputeInput) (domain.Dispute, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Dispute{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Dispute{}, domain.ErrIdempotencyRequired }
	input.EvidenceHash = strings.TrimSpace(input.EvidenceHash)
	if input.TransactionID == 0 || input.EvidenceHash == "" { return domain.Dispute{}, domain.ErrInvalidInput }
	if input.Stake == 0 { return domain.Dispute{}, domain.ErrZeroAmount }
	// winner recovers 2*stake on ruling; reject stakes the payout cannot represent
	if input.Stake > math.MaxUint64/2 { return domain.Dispute{}, domain.ErrAmountOverflow }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Dispute
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Dispute{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Dispute{}, err }
	plaintiff, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.Dispute{}, err }
	tx, err := s.transactions.GetByID(ctx, input.TransactionID)
	if err != nil { return domain.Dispute{}, err }
	if tx.Status != domain.TransactionStatusFulfilled { return domain.Dispute{}, domain.ErrInvalidState }
	var defendantAddr string
	switch plaintiff.Address {
	case tx.Consumer:
		defendantAddr = tx.Provider
	case tx.Provider:
		defendantAddr = tx.Consumer
	default:
		return domain.Dispute{}, domain.ErrForbidden
	}
	defendant, err := s.agents.Get(ctx, defendantAddr)
	if err != nil { return domain.Dispute{}, err }
	fee, tier := s.cfg.FeeSchedule.FeeFor(plaintiff.LossTier)
	if plaintiff.Balance < input.Stake+fee { return domain.Dispute{}, domain.ErrInsufficientBalance }
	if defendant.Balance < input.Stake { return domain.Dispute{}, domain.ErrInsufficientBalance }
	now := s.nowFn()
	plaintiff.Balance -= input.Stake + fee
	plaintiff.UpdatedAt = now
	defendant.Balance -= input.Stake
	defendant.UpdatedAt = now
	dispute := domain.Dispute{TransactionID: tx.TransactionID, Plaintiff: plaintiff.Address, Defendant: defendant.Address, Stake: input.Stake, JudgeFee: fee, Tier: tier, PlaintiffEvidence: input.EvidenceHash, FiledAt: now}
	id, err := s.disputes.Create(ctx, dispute)
	if err != nil { return domain.Dispute{}, err }
	dispute.DisputeID = id
	tx.Status = domain.TransactionStatusDisputed
	tx.DisputeID = id
	if err := s.transactions.Update(ctx, tx); err != nil { return domain.Dispute{}, err }
	if listing, lerr := s.services.GetByID(ctx, tx.ServiceID); lerr == nil {
		listing.TotalDisputes++
		listing.UpdatedAt = now
		if err := s.services.Update(ctx, listing); err != nil { return domain.Dispute{}, err }
	}
	if err := s.agents.Upsert(ctx, plaintiff); err != nil { return domain.Dispute{}, err }
	if err := s.agents.Upsert(ctx, defendant); err != nil { return domain.Dispute{}, err }
	if err := s.enqueueDisputeFiled(ctx, dispute, actor.RequestID, now); err != nil { return domain.Dispute{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

func (s *Service) RespondDispute(ctx context.Context, actor Actor, input RespondDisputeInput) (domain.Dispute, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Dispute{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Dispute{}, domain.ErrIdempotencyRequired }
	input.EvidenceHash = strings.TrimSpace(input.EvidenceHash)
	if input.DisputeID == 0 || input.EvidenceHash == "" { return domain.Dispute{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Dispute
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Dispute{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Dispute{}, err }
	dispute, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil { return domain.Dispute{}, err }
	if dispute.Resolved { return domain.Dispute{}, domain.ErrAlreadyResolved }
	if dispute.Defendant != domain.NormalizeAddress(actor.SubjectID) { return domain.Dispute{}, domain.ErrForbidden }
	if dispute.DefendantEvidence != "" { return domain.Dispute{}, domain.ErrAlreadyResponded }
	dispute.DefendantEvidence = input.EvidenceHash
	if err := s.disputes.Update(ctx, dispute); err != nil { return domain.Dispute{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

// SubmitRuling records the judge's verdict and settles every frozen amount
// in one step: the winner recovers both stakes, the judge fee pays out, and
// the disputed payment releases to whichever side prevailed. The judge only
// ever names a winner; no code path hands the judge the staked funds.
//
// A ruling may land before the defendant has responded. There is no evidence
// window; judges are expected to wait, but the ledger does not enforce it.
func (s *Service) SubmitRuling(ctx context.Context, actor Actor, input SubmitRulingInput) (domain.Dispute, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Dispute{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Dispute{}, domain.ErrIdempotencyRequired }
	winner := domain.NormalizeAddress(input.Winner)
	if input.DisputeID == 0 || winner == "" { return domain.Dispute{}, domain.ErrInvalidInput }
	ok, err := s.authority.IsJudge(ctx, domain.NormalizeAddress(actor.SubjectID))
	if err != nil { return domain.Dispute{}, err }
	if !ok { return domain.Dispute{}, domain.ErrForbidden }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Dispute
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Dispute{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Dispute{}, err }
	dispute, err := s.disputes.GetByID(ctx, input.DisputeID)
	if err != nil { return domain.Dispute{}, err }
	if dispute.Resolved { return domain.Dispute{}, domain.ErrAlreadyResolved }
	var loserAddr string
	switch winner {
	case dispute.Plaintiff:
		loserAddr = dispute.Defendant
	case dispute.Defendant:
		loserAddr = dispute.Plaintiff
	default:
		return domain.Dispute{}, domain.ErrInvalidInput
	}
	tx, err := s.transactions.GetByID(ctx, dispute.TransactionID)
	if err != nil { return domain.Dispute{}, err }
	now := s.nowFn()
	book := newAgentBook(s.agents)
	winnerRow, err := book.get(ctx, winner)
	if err != nil { return domain.Dispute{}, err }
	loserRow, err := book.get(ctx, loserAddr)
	if err != nil { return domain.Dispute{}, err }
	operator, err := book.get(ctx, s.cfg.OperatorAddress)
	if err != nil { return domain.Dispute{}, err }
	winnerBalance, ok := domain.CheckedAdd(winnerRow.Balance, 2*dispute.Stake)
	if !ok { return domain.Dispute{}, domain.ErrAmountOverflow }
	winnerRow.Balance = winnerBalance
	winnerRow.Stats.DisputesWon++
	loserRow.Stats.DisputesLost++
	if loserRow.LossTier < domain.MaxLossTier { loserRow.LossTier++ }
	operatorBalance, ok := domain.CheckedAdd(operator.Balance, dispute.JudgeFee)
	if !ok { return domain.Dispute{}, domain.ErrAmountOverflow }
	operator.Balance = operatorBalance
	if winner == tx.Consumer {
		if winnerRow.Balance, ok = domain.CheckedAdd(winnerRow.Balance, tx.Payment); !ok { return domain.Dispute{}, domain.ErrAmountOverflow }
	} else {
		fee := domain.ProtocolFee(tx.Payment, s.cfg.FeeRateBps)
		if winnerRow.Balance, ok = domain.CheckedAdd(winnerRow.Balance, tx.Payment-fee); !ok { return domain.Dispute{}, domain.ErrAmountOverflow }
		winnerRow.Stats.TotalEarned += tx.Payment - fee
		if operator.Balance, ok = domain.CheckedAdd(operator.Balance, fee); !ok { return domain.Dispute{}, domain.ErrAmountOverflow }
	}
	dispute.Resolved = true
	dispute.Winner = winner
	dispute.ResolvedAt = now
	if err := s.disputes.Update(ctx, dispute); err != nil { return domain.Dispute{}, err }
	if err := book.flush(ctx, now); err != nil { return domain.Dispute{}, err }
	if err := s.enqueueDisputeResolved(ctx, dispute, loserAddr, actor.RequestID, now); err != nil { return domain.Dispute{}, err }
	if s.reputation != nil {
		_ = s.reputation.Notify(ctx, winner, "disputes_won", 1)
		_ = s.reputation.Notify(ctx, loserAddr, "disputes_lost", -1)
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, dispute)
	return dispute, nil
}

func (s *Service) GetDispute(ctx context.Context, actor Actor, disputeID uint64) (domain.Dispute, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Dispute{}, domain.ErrUnauthorized }
	if disputeID == 0 { return domain.Dispute{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disputes.GetByID(ctx, disputeID)
}
