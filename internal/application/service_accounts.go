package application

import (
	"context"
	"strings"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type RegisterAgentInput struct {
	Deposit uint64 `json:"deposit"`
}

type DepositInput struct {
	Amount uint64 `json:"amount"`
}

type WithdrawInput struct {
	Amount uint64 `json:"amount"`
}

// Register opens an account by locking an initial deposit. When the identity
// gate is enabled the caller must already hold at least one identity
// membership; a gate outage aborts rather than letting anyone through.
func (s *Service) Register(ctx context.Context, actor Actor, input RegisterAgentInput) (domain.Agent, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Agent{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Agent{}, domain.ErrIdempotencyRequired }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Agent
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Agent{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Agent{}, err }
	address := domain.NormalizeAddress(actor.SubjectID)
	agent, err := s.agents.Get(ctx, address)
	if err != nil && err != domain.ErrNotFound { return domain.Agent{}, err }
	if agent.Registered() { return domain.Agent{}, domain.ErrAlreadyRegistered }
	if input.Deposit < s.cfg.MinDeposit { return domain.Agent{}, domain.ErrBelowMinimum }
	if s.cfg.IdentityRequired {
		count, gateErr := s.identity.MembershipCount(ctx, address)
		if gateErr != nil { return domain.Agent{}, domain.ErrIdentityUnavailable }
		if count == 0 { return domain.Agent{}, domain.ErrNoIdentity }
	}
	// Fees can accrue to an address before it registers (the operator account
	// collects protocol and judge fees from day one), so registration credits
	// the deposit on top of whatever the row already holds.
	balance, ok := domain.CheckedAdd(agent.Balance, input.Deposit)
	if !ok { return domain.Agent{}, domain.ErrAmountOverflow }
	now := s.nowFn()
	agent.Address = address
	agent.Balance = balance
	agent.RegisteredAt = now
	agent.UpdatedAt = now
	if err := s.agents.Upsert(ctx, agent); err != nil { return domain.Agent{}, err }
	if err := s.enqueueAgentRegistered(ctx, agent, actor.RequestID, now); err != nil { return domain.Agent{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, agent)
	return agent, nil
}

func (s *Service) Deposit(ctx context.Context, actor Actor, input DepositInput) (domain.Agent, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Agent{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Agent{}, domain.ErrIdempotencyRequired }
	if input.Amount == 0 { return domain.Agent{}, domain.ErrZeroAmount }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Agent
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Agent{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Agent{}, err }
	agent, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.Agent{}, err }
	balance, ok := domain.CheckedAdd(agent.Balance, input.Amount)
	if !ok { return domain.Agent{}, domain.ErrAmountOverflow }
	agent.Balance = balance
	agent.UpdatedAt = s.nowFn()
	if err := s.agents.Upsert(ctx, agent); err != nil { return domain.Agent{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, agent)
	return agent, nil
}

// Withdraw debits free balance. Frozen funds (payments in flight, dispute
// stakes, judge fees) were already removed from Balance when they froze, so
// the single balance check is the whole solvency rule.
func (s *Service) Withdraw(ctx context.Context, actor Actor, input WithdrawInput) (domain.Agent, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Agent{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Agent{}, domain.ErrIdempotencyRequired }
	if input.Amount == 0 { return domain.Agent{}, domain.ErrZeroAmount }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Agent
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Agent{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Agent{}, err }
	agent, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.Agent{}, err }
	if input.Amount > agent.Balance { return domain.Agent{}, domain.ErrInsufficientBalance }
	agent.Balance -= input.Amount
	agent.UpdatedAt = s.nowFn()
	if err := s.agents.Upsert(ctx, agent); err != nil { return domain.Agent{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, agent)
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, actor Actor, address string) (domain.Agent, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Agent{}, domain.ErrUnauthorized }
	if strings.TrimSpace(address) == "" { return domain.Agent{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents.Get(ctx, domain.NormalizeAddress(address))
}

// CheckIdentity reports whether the given agent currently passes the
// identity gate. Pass-through, no caching.
func (s *Service) CheckIdentity(ctx context.Context, actor Actor, address string) (bool, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return false, domain.ErrUnauthorized }
	if strings.TrimSpace(address) == "" { return false, domain.ErrInvalidInput }
	count, err := s.identity.MembershipCount(ctx, domain.NormalizeAddress(address))
	if err != nil { return false, domain.ErrIdentityUnavailable }
	return count > 0, nil
}

// JudgeFeeFor quotes the judge fee and court tier the agent would pay to file
// a dispute right now. Unknown agents quote at the district tier.
func (s *Service) JudgeFeeFor(ctx context.Context, actor Actor, address string) (uint64, uint8, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return 0, 0, domain.ErrUnauthorized }
	if strings.TrimSpace(address) == "" { return 0, 0, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, err := s.agents.Get(ctx, domain.NormalizeAddress(address))
	if err != nil && err != domain.ErrNotFound { return 0, 0, err }
	fee, tier := s.cfg.FeeSchedule.FeeFor(agent.LossTier)
	return fee, tier, nil
}

type LedgerStatus struct {
	ServiceCount     uint64
	TransactionCount uint64
	DisputeCount     uint64
	MinDeposit       uint64
	FeeRateBps       uint64
	Operator         string
}

// MinDeposit is the configured registration floor, exposed for read models.
func (s *Service) MinDeposit() uint64 { return s.cfg.MinDeposit }

func (s *Service) Status(ctx context.Context, actor Actor) (LedgerStatus, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return LedgerStatus{}, domain.ErrUnauthorized }
	s.mu.Lock()
	defer s.mu.Unlock()
	services, err := s.services.Count(ctx)
	if err != nil { return LedgerStatus{}, err }
	transactions, err := s.transactions.Count(ctx)
	if err != nil { return LedgerStatus{}, err }
	disputes, err := s.disputes.Count(ctx)
	if err != nil { return LedgerStatus{}, err }
	return LedgerStatus{ServiceCount: services, TransactionCount: transactions, DisputeCount: disputes, MinDeposit: s.cfg.MinDeposit, FeeRateBps: s.cfg.FeeRateBps, Operator: s.cfg.OperatorAddress}, nil
}

// registeredAgent loads the caller's row and rejects principals that never
// registered. Callers must hold s.mu.
func (s *Service) registeredAgent(ctx context.Context, subject string) (domain.Agent, error) {
	agent, err := s.agents.Get(ctx, domain.NormalizeAddress(subject))
	if err == domain.ErrNotFound { return domain.Agent{}, domain.ErrNotRegistered }
	if err != nil { return domain.Agent{}, err }
	if !agent.Registered() { return domain.Agent{}, domain.ErrNotRegistered }
	return agent, nil
}
