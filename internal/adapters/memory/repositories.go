// Package memory backs every repository port with mutex-guarded maps.
// It is the store used by tests and single-node deployments; the postgres
// package carries the durable equivalent.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

type Repositories struct {
	Agents       *AgentRepository
	Services     *ServiceRepository
	Transactions *TransactionRepository
	Disputes     *DisputeRepository
	Evidence     *EvidenceRepository
	Idempotency  *IdempotencyRepository
	EventDedup   *EventDedupRepository
	Outbox       *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Agents:       &AgentRepository{rows: map[string]domain.Agent{}},
		Services:     &ServiceRepository{rows: map[uint64]domain.Service{}},
		Transactions: &TransactionRepository{rows: map[uint64]domain.Transaction{}},
		Disputes:     &DisputeRepository{rows: map[uint64]domain.Dispute{}},
		Evidence:     &EvidenceRepository{rows: map[string]domain.EvidenceCommit{}},
		Idempotency:  &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		EventDedup:   &EventDedupRepository{rows: map[string]eventDedupRow{}},
		Outbox:       &OutboxRepository{rows: map[string]ports.OutboxRecord{}, order: []string{}},
	}
}

type AgentRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Agent
}

func (r *AgentRepository) Get(_ context.Context, address string) (domain.Agent, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[domain.NormalizeAddress(address)]
	if !ok { return domain.Agent{}, domain.ErrNotFound }
	return row, nil
}

func (r *AgentRepository) Upsert(_ context.Context, row domain.Agent) error {
	r.mu.Lock(); defer r.mu.Unlock()
	r.rows[domain.NormalizeAddress(row.Address)] = row
	return nil
}

type ServiceRepository struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]domain.Service
}

func (r *ServiceRepository) Create(_ context.Context, row domain.Service) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	r.next++
	row.ServiceID = r.next
	r.rows[row.ServiceID] = row
	return row.ServiceID, nil
}

func (r *ServiceRepository) GetByID(_ context.Context, serviceID uint64) (domain.Service, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[serviceID]
	if !ok { return domain.Service{}, domain.ErrNotFound }
	return row, nil
}

func (r *ServiceRepository) Update(_ context.Context, row domain.Service) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.ServiceID]; !ok { return domain.ErrNotFound }
	r.rows[row.ServiceID] = row
	return nil
}

func (r *ServiceRepository) Count(_ context.Context) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	return uint64(len(r.rows)), nil
}

type TransactionRepository struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]domain.Transaction
}

func (r *TransactionRepository) Create(_ context.Context, row domain.Transaction) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	r.next++
	row.TransactionID = r.next
	r.rows[row.TransactionID] = row
	return row.TransactionID, nil
}

func (r *TransactionRepository) GetByID(_ context.Context, transactionID uint64) (domain.Transaction, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[transactionID]
	if !ok { return domain.Transaction{}, domain.ErrNotFound }
	return row, nil
}

func (r *TransactionRepository) Update(_ context.Context, row domain.Transaction) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.TransactionID]; !ok { return domain.ErrNotFound }
	r.rows[row.TransactionID] = row
	return nil
}

func (r *TransactionRepository) Count(_ context.Context) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	return uint64(len(r.rows)), nil
}

type DisputeRepository struct {
	mu   sync.Mutex
	next uint64
	rows map[uint64]domain.Dispute
}

func (r *DisputeRepository) Create(_ context.Context, row domain.Dispute) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	r.next++
	row.DisputeID = r.next
	r.rows[row.DisputeID] = row
	return row.DisputeID, nil
}

func (r *DisputeRepository) GetByID(_ context.Context, disputeID uint64) (domain.Dispute, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[disputeID]
	if !ok { return domain.Dispute{}, domain.ErrNotFound }
	return row, nil
}

func (r *DisputeRepository) Update(_ context.Context, row domain.Dispute) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.DisputeID]; !ok { return domain.ErrNotFound }
	r.rows[row.DisputeID] = row
	return nil
}

func (r *DisputeRepository) Count(_ context.Context) (uint64, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	return uint64(len(r.rows)), nil
}

type EvidenceRepository struct {
	mu   sync.Mutex
	rows map[string]domain.EvidenceCommit
}

func (r *EvidenceRepository) Put(_ context.Context, row domain.EvidenceCommit) error {
	r.mu.Lock(); defer r.mu.Unlock()
	r.rows[row.Key] = row
	return nil
}

func (r *EvidenceRepository) GetByKey(_ context.Context, key string) (domain.EvidenceCommit, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok { return domain.EvidenceCommit{}, domain.ErrNotFound }
	return row, nil
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok { return nil, nil }
	if now.After(row.ExpiresAt) { delete(r.rows, key); return nil, nil }
	c := row
	c.ResponseBody = append([]byte(nil), row.ResponseBody...)
	return &c, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if row, ok := r.rows[key]; ok && time.Now().UTC().Before(row.ExpiresAt) { return domain.ErrConflict }
	r.rows[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[key]
	if !ok { return domain.ErrNotFound }
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.rows[key] = row
	return nil
}

type eventDedupRow struct {
	EventID   string
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	mu   sync.Mutex
	rows map[string]eventDedupRow
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[eventID]
	if !ok { return false, nil }
	if now.After(row.ExpiresAt) { delete(r.rows, eventID); return false, nil }
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	r.rows[eventID] = eventDedupRow{EventID: eventID, EventType: eventType, ExpiresAt: expiresAt}
	return nil
}

type OutboxRepository struct {
	mu    sync.Mutex
	rows  map[string]ports.OutboxRecord
	order []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, row ports.OutboxRecord) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.RecordID]; ok { return domain.ErrConflict }
	r.rows[row.RecordID] = row
	r.order = append(r.order, row.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order {
		row, ok := r.rows[id]
		if !ok || row.SentAt != nil { continue }
		out = append(out, row)
		if len(out) >= limit { break }
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[recordID]
	if !ok { return domain.ErrNotFound }
	row.SentAt = &at
	r.rows[recordID] = row
	return nil
}
