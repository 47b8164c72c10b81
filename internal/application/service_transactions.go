package application

import (
	"context"
	"strings"
	"time"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type RequestServiceInput struct {
	ServiceID   uint64 `json:"service_id"`
	RequestHash string `json:"request_hash"`
}

type FulfillTransactionInput struct {
	TransactionID uint64 `json:"transaction_id"`
	ResponseHash  string `json:"response_hash"`
}

type ConfirmTransactionInput struct {
	TransactionID uint64 `json:"transaction_id"`
}

type AutoCompleteInput struct {
	TransactionID uint64 `json:"transaction_id"`
}

// RequestService freezes the listing price from the consumer and opens a
// transaction. The consumer must be able to cover the larger of the price and
// the listing's bond requirement, though only the price is actually frozen.
func (s *Service) RequestService(ctx context.Context, actor Actor, input RequestServiceInput) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Transaction{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Transaction{}, domain.ErrIdempotencyRequired }
	input.RequestHash = strings.TrimSpace(input.RequestHash)
	if input.ServiceID == 0 || input.RequestHash == "" { return domain.Transaction{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Transaction
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Transaction{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Transaction{}, err }
	consumer, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.Transaction{}, err }
	listing, err := s.services.GetByID(ctx, input.ServiceID)
	if err != nil { return domain.Transaction{}, err }
	if listing.Status != domain.ServiceStatusActive { return domain.Transaction{}, domain.ErrInvalidState }
	if consumer.Address == listing.Provider { return domain.Transaction{}, domain.ErrForbidden }
	required := listing.Price
	if listing.BondRequired > required { required = listing.BondRequired }
	if consumer.Balance < required { return domain.Transaction{}, domain.ErrInsufficientBalance }
	now := s.nowFn()
	consumer.Balance -= listing.Price
	consumer.Stats.TotalTransactions++
	consumer.Stats.TotalSpent += listing.Price
	consumer.UpdatedAt = now
	tx := domain.Transaction{ServiceID: listing.ServiceID, Consumer: consumer.Address, Provider: listing.Provider, Payment: listing.Price, RequestHash: input.RequestHash, Status: domain.TransactionStatusRequested, CreatedAt: now}
	id, err := s.transactions.Create(ctx, tx)
	if err != nil { return domain.Transaction{}, err }
	tx.TransactionID = id
	listing.TotalCalls++
	listing.UpdatedAt = now
	if err := s.services.Update(ctx, listing); err != nil { return domain.Transaction{}, err }
	if err := s.agents.Upsert(ctx, consumer); err != nil { return domain.Transaction{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, tx)
	return tx, nil
}

func (s *Service) FulfillTransaction(ctx context.Context, actor Actor, input FulfillTransactionInput) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Transaction{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Transaction{}, domain.ErrIdempotencyRequired }
	input.ResponseHash = strings.TrimSpace(input.ResponseHash)
	if input.TransactionID == 0 || input.ResponseHash == "" { return domain.Transaction{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Transaction
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Transaction{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Transaction{}, err }
	tx, err := s.transactions.GetByID(ctx, input.TransactionID)
	if err != nil { return domain.Transaction{}, err }
	if tx.Provider != domain.NormalizeAddress(actor.SubjectID) { return domain.Transaction{}, domain.ErrForbidden }
	if tx.Status != domain.TransactionStatusRequested { return domain.Transaction{}, domain.ErrInvalidState }
	tx.ResponseHash = input.ResponseHash
	tx.Status = domain.TransactionStatusFulfilled
	tx.FulfilledAt = s.nowFn()
	if err := s.transactions.Update(ctx, tx); err != nil { return domain.Transaction{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, tx)
	return tx, nil
}

// ConfirmTransaction is the consumer accepting delivery; it settles
// immediately.
func (s *Service) ConfirmTransaction(ctx context.Context, actor Actor, input ConfirmTransactionInput) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Transaction{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Transaction{}, domain.ErrIdempotencyRequired }
	if input.TransactionID == 0 { return domain.Transaction{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Transaction
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Transaction{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Transaction{}, err }
	tx, err := s.transactions.GetByID(ctx, input.TransactionID)
	if err != nil { return domain.Transaction{}, err }
	if tx.Consumer != domain.NormalizeAddress(actor.SubjectID) { return domain.Transaction{}, domain.ErrForbidden }
	if tx.Status != domain.TransactionStatusFulfilled { return domain.Transaction{}, domain.ErrInvalidState }
	tx, err = s.settle(ctx, tx, "confirmed", actor.RequestID, s.nowFn())
	if err != nil { return domain.Transaction{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, tx)
	return tx, nil
}

// AutoComplete settles a fulfilled transaction whose consumer went silent.
// Callable by anyone once the grace period has elapsed, so providers are
// never hostage to an unresponsive counterparty.
func (s *Service) AutoComplete(ctx context.Context, actor Actor, input AutoCompleteInput) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Transaction{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Transaction{}, domain.ErrIdempotencyRequired }
	if input.TransactionID == 0 { return domain.Transaction{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Transaction
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Transaction{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Transaction{}, err }
	tx, err := s.transactions.GetByID(ctx, input.TransactionID)
	if err != nil { return domain.Transaction{}, err }
	if tx.Status != domain.TransactionStatusFulfilled { return domain.Transaction{}, domain.ErrInvalidState }
	now := s.nowFn()
	if now.Before(tx.FulfilledAt.Add(s.cfg.AutoCompleteGrace)) { return domain.Transaction{}, domain.ErrInvalidState }
	tx, err = s.settle(ctx, tx, "auto_completed", actor.RequestID, now)
	if err != nil { return domain.Transaction{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, tx)
	return tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, actor Actor, transactionID uint64) (domain.Transaction, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Transaction{}, domain.ErrUnauthorized }
	if transactionID == 0 { return domain.Transaction{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.GetByID(ctx, transactionID)
}

// settle releases the frozen payment: payout to the provider, protocol fee
// to the operator. Both paths (consumer confirm and grace-period
// auto-complete) produce the same ledger movement and the same event, so any
// difference would show up as a balance discrepancy downstream. Callers must
// hold s.mu and have verified the fulfilled state.
func (s *Service) settle(ctx context.Context, tx domain.Transaction, settlement, traceID string, now time.Time) (domain.Transaction, error) {
	fee := domain.ProtocolFee(tx.Payment, s.cfg.FeeRateBps)
	payout := tx.Payment - fee
	book := newAgentBook(s.agents)
	provider, err := book.get(ctx, tx.Provider)
	if err != nil { return domain.Transaction{}, err }
	consumer, err := book.get(ctx, tx.Consumer)
	if err != nil { return domain.Transaction{}, err }
	operator, err := book.get(ctx, s.cfg.OperatorAddress)
	if err != nil { return domain.Transaction{}, err }
	providerBalance, ok := domain.CheckedAdd(provider.Balance, payout)
	if !ok { return domain.Transaction{}, domain.ErrAmountOverflow }
	provider.Balance = providerBalance
	provider.Stats.TotalTransactions++
	provider.Stats.SuccessfulTransactions++
	provider.Stats.TotalEarned += payout
	consumer.Stats.SuccessfulTransactions++
	operatorBalance, ok := domain.CheckedAdd(operator.Balance, fee)
	if !ok { return domain.Transaction{}, domain.ErrAmountOverflow }
	operator.Balance = operatorBalance
	tx.Status = domain.TransactionStatusCompleted
	if err := s.transactions.Update(ctx, tx); err != nil { return domain.Transaction{}, err }
	if err := book.flush(ctx, now); err != nil { return domain.Transaction{}, err }
	if err := s.enqueueTransactionCompleted(ctx, tx, fee, settlement, traceID, now); err != nil { return domain.Transaction{}, err }
	if s.reputation != nil {
		_ = s.reputation.Notify(ctx, tx.Provider, "transactions", 1)
		_ = s.reputation.Notify(ctx, tx.Consumer, "transactions", 1)
	}
	return tx, nil
}
