package ports

import (
	"context"
	"time"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

type AgentRepository interface {
	Get(ctx context.Context, address string) (domain.Agent, error)
	Upsert(ctx context.Context, row domain.Agent) error
}

type ServiceRepository interface {
	// Create assigns and returns the next monotonically increasing id.
	Create(ctx context.Context, row domain.Service) (uint64, error)
	GetByID(ctx context.Context, serviceID uint64) (domain.Service, error)
	Update(ctx context.Context, row domain.Service) error
	Count(ctx context.Context) (uint64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, row domain.Transaction) (uint64, error)
	GetByID(ctx context.Context, transactionID uint64) (domain.Transaction, error)
	Update(ctx context.Context, row domain.Transaction) error
	Count(ctx context.Context) (uint64, error)
}

type DisputeRepository interface {
	Create(ctx context.Context, row domain.Dispute) (uint64, error)
	GetByID(ctx context.Context, disputeID uint64) (domain.Dispute, error)
	Update(ctx context.Context, row domain.Dispute) error
	Count(ctx context.Context) (uint64, error)
}

type EvidenceRepository interface {
	// Put stores by derived key, overwriting any previous commit.
	Put(ctx context.Context, row domain.EvidenceCommit) error
	GetByKey(ctx context.Context, key string) (domain.EvidenceCommit, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
