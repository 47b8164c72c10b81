package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type RegisterAgentRequest struct {
	Deposit uint64 `json:"deposit"`
}

type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

type WithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

type RegisterServiceRequest struct {
	TermsHash    string `json:"terms_hash"`
	Price        uint64 `json:"price"`
	BondRequired uint64 `json:"bond_required"`
}

type UpdateServiceRequest struct {
	Status string `json:"status"`
}

type RequestServiceRequest struct {
	ServiceID   uint64 `json:"service_id"`
	RequestHash string `json:"request_hash"`
}

type FulfillTransactionRequest struct {
	ResponseHash string `json:"response_hash"`
}

type FileDisputeRequest struct {
	TransactionID uint64 `json:"transaction_id"`
	Stake         uint64 `json:"stake"`
	EvidenceHash  string `json:"evidence_hash"`
}

type RespondDisputeRequest struct {
	EvidenceHash string `json:"evidence_hash"`
}

type SubmitRulingRequest struct {
	Winner string `json:"winner"`
}

type CommitEvidenceRequest struct {
	InteractionKey string `json:"interaction_key"`
	EvidenceHash   string `json:"evidence_hash"`
}

type AgentResponse struct {
	Address      string `json:"address"`
	Balance      uint64 `json:"balance"`
	Registered   bool   `json:"registered"`
	RegisteredAt string `json:"registered_at,omitempty"`
	LossTier     uint8  `json:"loss_tier"`
}

type AgentStatsResponse struct {
	Address                string `json:"address"`
	TotalTransactions      uint64 `json:"total_transactions"`
	SuccessfulTransactions uint64 `json:"successful_transactions"`
	DisputesWon            uint64 `json:"disputes_won"`
	DisputesLost           uint64 `json:"disputes_lost"`
	TotalEarned            uint64 `json:"total_earned"`
	TotalSpent             uint64 `json:"total_spent"`
	SuccessRate            uint64 `json:"success_rate"`
}

type BalanceResponse struct {
	Address  string `json:"address"`
	Balance  uint64 `json:"balance"`
	Eligible bool   `json:"eligible"`
}

type JudgeFeeResponse struct {
	Agent    string `json:"agent"`
	Fee      uint64 `json:"fee"`
	Tier     uint8  `json:"tier"`
	TierName string `json:"tier_name"`
}

type ServiceResponse struct {
	ServiceID     uint64 `json:"service_id"`
	Provider      string `json:"provider"`
	TermsHash     string `json:"terms_hash"`
	Price         uint64 `json:"price"`
	BondRequired  uint64 `json:"bond_required"`
	Status        string `json:"status"`
	TotalCalls    uint64 `json:"total_calls"`
	TotalDisputes uint64 `json:"total_disputes"`
}

type TransactionResponse struct {
	TransactionID uint64 `json:"transaction_id"`
	ServiceID     uint64 `json:"service_id"`
	Consumer      string `json:"consumer"`
	Provider      string `json:"provider"`
	Payment       uint64 `json:"payment"`
	RequestHash   string `json:"request_hash"`
	ResponseHash  string `json:"response_hash,omitempty"`
	Status        string `json:"status"`
	DisputeID     uint64 `json:"dispute_id,omitempty"`
}

type DisputeResponse struct {
	DisputeID         uint64 `json:"dispute_id"`
	TransactionID     uint64 `json:"transaction_id"`
	Plaintiff         string `json:"plaintiff"`
	Defendant         string `json:"defendant"`
	Stake             uint64 `json:"stake"`
	JudgeFee          uint64 `json:"judge_fee"`
	Tier              uint8  `json:"tier"`
	TierName          string `json:"tier_name"`
	PlaintiffEvidence string `json:"plaintiff_evidence,omitempty"`
	DefendantEvidence string `json:"defendant_evidence,omitempty"`
	Resolved          bool   `json:"resolved"`
	Winner            string `json:"winner,omitempty"`
}

type EvidenceCommitResponse struct {
	Key            string `json:"key"`
	InteractionKey string `json:"interaction_key"`
	Committer      string `json:"committer"`
	EvidenceHash   string `json:"evidence_hash"`
	CommittedAt    string `json:"committed_at"`
}

type StatusResponse struct {
	ServiceCount     uint64 `json:"service_count"`
	TransactionCount uint64 `json:"transaction_count"`
	DisputeCount     uint64 `json:"dispute_count"`
	MinDeposit       uint64 `json:"min_deposit"`
	FeeRateBps       uint64 `json:"fee_rate_bps"`
	Judge            string `json:"judge"`
}
