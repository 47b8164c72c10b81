package postgres

import "time"

type agentModel struct {
	Address                string     `gorm:"column:address;primaryKey"`
	Balance                uint64     `gorm:"column:balance"`
	RegisteredAt           *time.Time `gorm:"column:registered_at"`
	TotalTransactions      uint64     `gorm:"column:total_transactions"`
	SuccessfulTransactions uint64     `gorm:"column:successful_transactions"`
	DisputesWon            uint64     `gorm:"column:disputes_won"`
	DisputesLost           uint64     `gorm:"column:disputes_lost"`
	TotalEarned            uint64     `gorm:"column:total_earned"`
	TotalSpent             uint64     `gorm:"column:total_spent"`
	LossTier               uint8      `gorm:"column:loss_tier"`
	UpdatedAt              time.Time  `gorm:"column:updated_at"`
}

func (agentModel) TableName() string { return "agents" }

type serviceModel struct {
	ServiceID     uint64    `gorm:"column:service_id;primaryKey;autoIncrement"`
	Provider      string    `gorm:"column:provider"`
	TermsHash     string    `gorm:"column:terms_hash"`
	Price         uint64    `gorm:"column:price"`
	BondRequired  uint64    `gorm:"column:bond_required"`
	Status        string    `gorm:"column:status"`
	TotalCalls    uint64    `gorm:"column:total_calls"`
	TotalDisputes uint64    `gorm:"column:total_disputes"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (serviceModel) TableName() string { return "services" }

type transactionModel struct {
	TransactionID uint64     `gorm:"column:transaction_id;primaryKey;autoIncrement"`
	ServiceID     uint64     `gorm:"column:service_id"`
	Consumer      string     `gorm:"column:consumer"`
	Provider      string     `gorm:"column:provider"`
	Payment       uint64     `gorm:"column:payment"`
	RequestHash   string     `gorm:"column:request_hash"`
	ResponseHash  string     `gorm:"column:response_hash"`
	Status        string     `gorm:"column:status"`
	DisputeID     uint64     `gorm:"column:dispute_id"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	FulfilledAt   *time.Time `gorm:"column:fulfilled_at"`
}

func (transactionModel) TableName() string { return "transactions" }

type disputeModel struct {
	DisputeID         uint64     `gorm:"column:dispute_id;primaryKey;autoIncrement"`
	TransactionID     uint64     `gorm:"column:transaction_id"`
	Plaintiff         string     `gorm:"column:plaintiff"`
	Defendant         string     `gorm:"column:defendant"`
	Stake             uint64     `gorm:"column:stake"`
	JudgeFee          uint64     `gorm:"column:judge_fee"`
	Tier              uint8      `gorm:"column:tier"`
	PlaintiffEvidence string     `gorm:"column:plaintiff_evidence"`
	DefendantEvidence string     `gorm:"column:defendant_evidence"`
	Resolved          bool       `gorm:"column:resolved"`
	Winner            string     `gorm:"column:winner"`
	FiledAt           time.Time  `gorm:"column:filed_at"`
	ResolvedAt        *time.Time `gorm:"column:resolved_at"`
}

func (disputeModel) TableName() string { return "disputes" }

type evidenceModel struct {
	Key            string    `gorm:"column:key;primaryKey"`
	InteractionKey string    `gorm:"column:interaction_key"`
	Committer      string    `gorm:"column:committer"`
	EvidenceHash   string    `gorm:"column:evidence_hash"`
	CommittedAt    time.Time `gorm:"column:committed_at"`
}

func (evidenceModel) TableName() string { return "evidence_commits" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   string     `gorm:"column:envelope"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "ledger_outbox" }
