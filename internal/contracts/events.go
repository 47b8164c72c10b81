package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type AgentRegisteredPayload struct {
	Agent        string `json:"agent"`
	Deposit      uint64 `json:"deposit"`
	RegisteredAt string `json:"registered_at"`
}

type ServiceRegisteredPayload struct {
	ServiceID uint64 `json:"service_id"`
	Provider  string `json:"provider"`
	Price     uint64 `json:"price"`
	TermsHash string `json:"terms_hash"`
}

type TransactionCompletedPayload struct {
	TransactionID uint64 `json:"transaction_id"`
	ServiceID     uint64 `json:"service_id"`
	Consumer      string `json:"consumer"`
	Provider      string `json:"provider"`
	Payment       uint64 `json:"payment"`
	Fee           uint64 `json:"fee"`
	Settlement    string `json:"settlement"` // "confirmed" or "auto_completed"
	CompletedAt   string `json:"completed_at"`
}

type DisputeFiledPayload struct {
	DisputeID     uint64 `json:"dispute_id"`
	TransactionID uint64 `json:"transaction_id"`
	Plaintiff     string `json:"plaintiff"`
	Defendant     string `json:"defendant"`
	Stake         uint64 `json:"stake"`
	JudgeFee      uint64 `json:"judge_fee"`
	Tier          uint8  `json:"tier"`
	FiledAt       string `json:"filed_at"`
}

type DisputeResolvedPayload struct {
	DisputeID  uint64 `json:"dispute_id"`
	Winner     string `json:"winner"`
	Loser      string `json:"loser"`
	Tier       uint8  `json:"tier"`
	ResolvedAt string `json:"resolved_at"`
}

type EvidenceCommittedPayload struct {
	Key            string `json:"key"`
	InteractionKey string `json:"interaction_key"`
	Committer      string `json:"committer"`
	EvidenceHash   string `json:"evidence_hash"`
	CommittedAt    string `json:"committed_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
