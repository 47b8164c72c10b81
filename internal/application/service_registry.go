package application

import (
	"context"
	"strings"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type RegisterServiceInput struct {
	TermsHash    string `json:"terms_hash"`
	Price        uint64 `json:"price"`
	BondRequired uint64 `json:"bond_required"`
}

type UpdateServiceInput struct {
	ServiceID uint64 `json:"service_id"`
	Status    string `json:"status"`
}

func (s *Service) RegisterService(ctx context.Context, actor Actor, input RegisterServiceInput) (domain.Service, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Service{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Service{}, domain.ErrIdempotencyRequired }
	input.TermsHash = strings.TrimSpace(input.TermsHash)
	if input.TermsHash == "" { return domain.Service{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Service
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Service{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Service{}, err }
	provider, err := s.registeredAgent(ctx, actor.SubjectID)
	if err != nil { return domain.Service{}, err }
	now := s.nowFn()
	row := domain.Service{Provider: provider.Address, TermsHash: input.TermsHash, Price: input.Price, BondRequired: input.BondRequired, Status: domain.ServiceStatusActive, CreatedAt: now, UpdatedAt: now}
	id, err := s.services.Create(ctx, row)
	if err != nil { return domain.Service{}, err }
	row.ServiceID = id
	if err := s.enqueueServiceRegistered(ctx, row, actor.RequestID, now); err != nil { return domain.Service{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, row)
	return row, nil
}

// UpdateService changes listing status. Status changes never touch
// transactions already in flight against the listing.
func (s *Service) UpdateService(ctx context.Context, actor Actor, input UpdateServiceInput) (domain.Service, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Service{}, domain.ErrUnauthorized }
	if strings.TrimSpace(actor.IdempotencyKey) == "" { return domain.Service{}, domain.ErrIdempotencyRequired }
	status := domain.NormalizeServiceStatus(input.Status)
	if input.ServiceID == 0 || status == "" { return domain.Service{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	requestHash := hashJSON(input)
	var cached domain.Service
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil { return domain.Service{}, err } else if ok { return cached, nil }
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil { return domain.Service{}, err }
	row, err := s.services.GetByID(ctx, input.ServiceID)
	if err != nil { return domain.Service{}, err }
	if row.Provider != domain.NormalizeAddress(actor.SubjectID) { return domain.Service{}, domain.ErrForbidden }
	row.Status = status
	row.UpdatedAt = s.nowFn()
	if err := s.services.Update(ctx, row); err != nil { return domain.Service{}, err }
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, row)
	return row, nil
}

func (s *Service) GetService(ctx context.Context, actor Actor, serviceID uint64) (domain.Service, error) {
	if strings.TrimSpace(actor.SubjectID) == "" { return domain.Service{}, domain.ErrUnauthorized }
	if serviceID == 0 { return domain.Service{}, domain.ErrInvalidInput }
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.services.GetByID(ctx, serviceID)
}
