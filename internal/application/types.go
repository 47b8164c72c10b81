package application

import (
	"context"
	"sync"
	"time"

	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

type Config struct {
	ServiceName          string
	MinDeposit           uint64
	FeeRateBps           uint64
	FeeSchedule          domain.FeeSchedule
	AutoCompleteGrace    time.Duration
	IdentityRequired     bool
	OperatorAddress      string
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxFlushBatchSize int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

// Service is the clearinghouse ledger. Every externally invoked operation
// runs under one mutex, so each call is a single indivisible transition:
// no interleaving of partial updates, no lost updates, no torn reads.
type Service struct {
	cfg Config
	mu  sync.Mutex

	agents       ports.AgentRepository
	services     ports.ServiceRepository
	transactions ports.TransactionRepository
	disputes     ports.DisputeRepository
	evidence     ports.EvidenceRepository
	idempotency  ports.IdempotencyRepository
	eventDedup   ports.EventDedupRepository
	outbox       ports.OutboxRepository

	identity   ports.IdentityGate
	reputation ports.ReputationNotifier
	authority  ports.RulingAuthority

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

	Agents       ports.AgentRepository
	Services     ports.ServiceRepository
	Transactions ports.TransactionRepository
	Disputes     ports.DisputeRepository
	Evidence     ports.EvidenceRepository
	Idempotency  ports.IdempotencyRepository
	EventDedup   ports.EventDedupRepository
	Outbox       ports.OutboxRepository

	Identity   ports.IdentityGate
	Reputation ports.ReputationNotifier
	Authority  ports.RulingAuthority

	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "clearinghouse-ledger"
	}
	if cfg.MinDeposit == 0 {
		cfg.MinDeposit = domain.DefaultMinDeposit
	}
	if cfg.FeeRateBps == 0 {
		cfg.FeeRateBps = domain.DefaultFeeRateBps
	}
	if cfg.FeeSchedule == (domain.FeeSchedule{}) {
		cfg.FeeSchedule = domain.DefaultFeeSchedule()
	}
	if cfg.AutoCompleteGrace <= 0 {
		cfg.AutoCompleteGrace = domain.DefaultAutoCompleteGrace
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	cfg.OperatorAddress = domain.NormalizeAddress(cfg.OperatorAddress)
	return &Service{
		cfg:          cfg,
		agents:       deps.Agents,
		services:     deps.Services,
		transactions: deps.Transactions,
		disputes:     deps.Disputes,
		evidence:     deps.Evidence,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		outbox:       deps.Outbox,
		identity:     deps.Identity,
		reputation:   deps.Reputation,
		authority:    deps.Authority,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// agentBook caches agent rows within one serialized operation so repeated
// credits to the same principal compose instead of clobbering each other.
// Nothing is written back until flush, which runs after all validation.
type agentBook struct {
	repo ports.AgentRepository
	rows map[string]*domain.Agent
}

func newAgentBook(repo ports.AgentRepository) *agentBook {
	return &agentBook{repo: repo, rows: map[string]*domain.Agent{}}
}

func (b *agentBook) get(ctx context.Context, address string) (*domain.Agent, error) {
	address = domain.NormalizeAddress(address)
	if row, ok := b.rows[address]; ok {
		return row, nil
	}
	agent, err := b.repo.Get(ctx, address)
	if err == domain.ErrNotFound {
		agent = domain.Agent{Address: address}
	} else if err != nil {
		return nil, err
	}
	row := &agent
	b.rows[address] = row
	return row, nil
}

func (b *agentBook) flush(ctx context.Context, now time.Time) error {
	for _, row := range b.rows {
		row.UpdatedAt = now
		if err := b.repo.Upsert(ctx, *row); err != nil {
			return err
		}
	}
	return nil
}
