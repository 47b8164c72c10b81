package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

// HandleCanonicalEvent is the mesh consumer entrypoint. The ledger currently
// subscribes to no canonical inputs, so anything that arrives after envelope
// and dedup checks is rejected as unsupported.
func (s *Service) HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error {
	if err := validateEnvelope(envelope); err != nil {
		return err
	}
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, envelope.EventID, s.nowFn())
		if err != nil { return err }
		if dup { return nil }
	}
	if !domain.IsCanonicalInputEvent(envelope.EventType) {
		return domain.ErrUnsupportedEventType
	}
	return s.eventDedup.MarkProcessed(ctx, envelope.EventID, envelope.EventType, s.nowFn().Add(s.cfg.EventDedupTTL))
}

func (s *Service) FlushOutbox(ctx context.Context) error {
	if s.outbox == nil { return nil }
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil { return err }
	for _, rec := range pending {
		now := s.nowFn()
		switch rec.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, rec.Envelope); err != nil {
					if s.dlq != nil {
						n := s.nowFn()
						_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{OriginalEvent: rec.Envelope, ErrorSummary: err.Error(), RetryCount: 1, FirstSeenAt: n, LastErrorAt: n, SourceTopic: rec.Envelope.EventType, DLQTopic: "clearinghouse-ledger.dlq", TraceID: rec.Envelope.TraceID})
					}
					return err
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil { _ = s.analytics.PublishAnalytics(ctx, rec.Envelope) }
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedEventClass, rec.EventClass)
		}
		if err := s.outbox.MarkSent(ctx, rec.RecordID, now); err != nil { return err }
	}
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, traceID string, data any, partitionKey string, now time.Time) error {
	if s.outbox == nil { return nil }
	if !domain.IsCanonicalEmittedEvent(eventType) { return domain.ErrUnsupportedEventType }
	b, err := json.Marshal(data)
	if err != nil { return domain.ErrInvalidInput }
	if strings.TrimSpace(traceID) == "" { traceID = uuid.NewString() }
	env := contracts.EventEnvelope{EventID: uuid.NewString(), EventType: eventType, EventClass: domain.CanonicalEventClass(eventType), OccurredAt: now, PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType), PartitionKey: partitionKey, SourceService: s.cfg.ServiceName, TraceID: traceID, SchemaVersion: "v1", Data: b}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{RecordID: uuid.NewString(), EventClass: env.EventClass, Envelope: env, CreatedAt: now})
}

func (s *Service) enqueueAgentRegistered(ctx context.Context, agent domain.Agent, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventAgentRegistered, traceID, contracts.AgentRegisteredPayload{Agent: agent.Address, Deposit: agent.Balance, RegisteredAt: agent.RegisteredAt.UTC().Format(time.RFC3339)}, agent.Address, now)
}

func (s *Service) enqueueServiceRegistered(ctx context.Context, svc domain.Service, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventServiceRegistered, traceID, contracts.ServiceRegisteredPayload{ServiceID: svc.ServiceID, Provider: svc.Provider, Price: svc.Price, TermsHash: svc.TermsHash}, formatID(svc.ServiceID), now)
}

func (s *Service) enqueueTransactionCompleted(ctx context.Context, tx domain.Transaction, fee uint64, settlement, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventTransactionCompleted, traceID, contracts.TransactionCompletedPayload{TransactionID: tx.TransactionID, ServiceID: tx.ServiceID, Consumer: tx.Consumer, Provider: tx.Provider, Payment: tx.Payment, Fee: fee, Settlement: settlement, CompletedAt: now.UTC().Format(time.RFC3339)}, formatID(tx.TransactionID), now)
}

func (s *Service) enqueueDisputeFiled(ctx context.Context, dispute domain.Dispute, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventDisputeFiled, traceID, contracts.DisputeFiledPayload{DisputeID: dispute.DisputeID, TransactionID: dispute.TransactionID, Plaintiff: dispute.Plaintiff, Defendant: dispute.Defendant, Stake: dispute.Stake, JudgeFee: dispute.JudgeFee, Tier: dispute.Tier, FiledAt: dispute.FiledAt.UTC().Format(time.RFC3339)}, formatID(dispute.DisputeID), now)
}

func (s *Service) enqueueDisputeResolved(ctx context.Context, dispute domain.Dispute, loser, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventDisputeResolved, traceID, contracts.DisputeResolvedPayload{DisputeID: dispute.DisputeID, Winner: dispute.Winner, Loser: loser, Tier: dispute.Tier, ResolvedAt: now.UTC().Format(time.RFC3339)}, formatID(dispute.DisputeID), now)
}

func (s *Service) enqueueEvidenceCommitted(ctx context.Context, commit domain.EvidenceCommit, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventEvidenceCommitted, traceID, contracts.EvidenceCommittedPayload{Key: commit.Key, InteractionKey: commit.InteractionKey, Committer: commit.Committer, EvidenceHash: commit.EvidenceHash, CommittedAt: commit.CommittedAt.UTC().Format(time.RFC3339)}, commit.Key, now)
}

func validateEnvelope(event contracts.EventEnvelope) error {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" || event.OccurredAt.IsZero() { return domain.ErrInvalidEnvelope }
	if strings.TrimSpace(event.SourceService) == "" || strings.TrimSpace(event.TraceID) == "" || strings.TrimSpace(event.SchemaVersion) == "" { return domain.ErrInvalidEnvelope }
	if len(event.Data) == 0 { return domain.ErrInvalidEnvelope }
	return nil
}

func (s *Service) getIdempotent(ctx context.Context, key, requestHash string, out any) (bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" { return false, nil }
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil { return false, err }
	if rec.RequestHash != requestHash { return false, domain.ErrIdempotencyConflict }
	if len(rec.ResponseBody) == 0 { return false, nil }
	if err := json.Unmarshal(rec.ResponseBody, out); err != nil { return false, nil }
	return true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil { return nil }
	err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL))
	if err == domain.ErrConflict { return domain.ErrIdempotencyConflict }
	return err
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, payload any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" { return nil }
	b, _ := json.Marshal(payload)
	return s.idempotency.Complete(ctx, key, code, b, s.nowFn())
}

func hashJSON(v any) string {
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
