package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

type Repositories struct {
	Agents       *AgentRepository
	Services     *ServiceRepository
	Transactions *TransactionRepository
	Disputes     *DisputeRepository
	Evidence     *EvidenceRepository
	Outbox       *OutboxRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Agents:       &AgentRepository{db: db},
		Services:     &ServiceRepository{db: db},
		Transactions: &TransactionRepository{db: db},
		Disputes:     &DisputeRepository{db: db},
		Evidence:     &EvidenceRepository{db: db},
		Outbox:       &OutboxRepository{db: db},
	}
}

type AgentRepository struct{ db *gorm.DB }

func (r *AgentRepository) Get(ctx context.Context, address string) (domain.Agent, error) {
	var rec agentModel
	if err := r.db.WithContext(ctx).Where("address = ?", domain.NormalizeAddress(address)).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Agent{}, domain.ErrNotFound
		}
		return domain.Agent{}, err
	}
	return toDomainAgent(rec), nil
}

func (r *AgentRepository) Upsert(ctx context.Context, row domain.Agent) error {
	rec := toAgentModel(row)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

type ServiceRepository struct{ db *gorm.DB }

func (r *ServiceRepository) Create(ctx context.Context, row domain.Service) (uint64, error) {
	rec := toServiceModel(row)
	rec.ServiceID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ServiceID, nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, serviceID uint64) (domain.Service, error) {
	var rec serviceModel
	if err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Service{}, domain.ErrNotFound
		}
		return domain.Service{}, err
	}
	return toDomainService(rec), nil
}

func (r *ServiceRepository) Update(ctx context.Context, row domain.Service) error {
	rec := toServiceModel(row)
	res := r.db.WithContext(ctx).Model(&serviceModel{}).Where("service_id = ?", rec.ServiceID).Select("*").Omit("service_id").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ServiceRepository) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&serviceModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return uint64(n), nil
}

type TransactionRepository struct{ db *gorm.DB }

func (r *TransactionRepository) Create(ctx context.Context, row domain.Transaction) (uint64, error) {
	rec := toTransactionModel(row)
	rec.TransactionID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.TransactionID, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, transactionID uint64) (domain.Transaction, error) {
	var rec transactionModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, err
	}
	return toDomainTransaction(rec), nil
}

func (r *TransactionRepository) Update(ctx context.Context, row domain.Transaction) error {
	rec := toTransactionModel(row)
	res := r.db.WithContext(ctx).Model(&transactionModel{}).Where("transaction_id = ?", rec.TransactionID).Select("*").Omit("transaction_id").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&transactionModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return uint64(n), nil
}

type DisputeRepository struct{ db *gorm.DB }

func (r *DisputeRepository) Create(ctx context.Context, row domain.Dispute) (uint64, error) {
	rec := toDisputeModel(row)
	rec.DisputeID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.DisputeID, nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, disputeID uint64) (domain.Dispute, error) {
	var rec disputeModel
	if err := r.db.WithContext(ctx).Where("dispute_id = ?", disputeID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Dispute{}, domain.ErrNotFound
		}
		return domain.Dispute{}, err
	}
	return toDomainDispute(rec), nil
}

func (r *DisputeRepository) Update(ctx context.Context, row domain.Dispute) error {
	rec := toDisputeModel(row)
	res := r.db.WithContext(ctx).Model(&disputeModel{}).Where("dispute_id = ?", rec.DisputeID).Select("*").Omit("dispute_id").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *DisputeRepository) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&disputeModel{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return uint64(n), nil
}

type EvidenceRepository struct{ db *gorm.DB }

func (r *EvidenceRepository) Put(ctx context.Context, row domain.EvidenceCommit) error {
	rec := evidenceModel{Key: row.Key, InteractionKey: row.InteractionKey, Committer: row.Committer, EvidenceHash: row.EvidenceHash, CommittedAt: row.CommittedAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

func (r *EvidenceRepository) GetByKey(ctx context.Context, key string) (domain.EvidenceCommit, error) {
	var rec evidenceModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EvidenceCommit{}, domain.ErrNotFound
		}
		return domain.EvidenceCommit{}, err
	}
	return domain.EvidenceCommit{Key: rec.Key, InteractionKey: rec.InteractionKey, Committer: rec.Committer, EvidenceHash: rec.EvidenceHash, CommittedAt: rec.CommittedAt}, nil
}

type OutboxRepository struct{ db *gorm.DB }

func (r *OutboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	envelope, err := json.Marshal(record.Envelope)
	if err != nil {
		return domain.ErrInvalidInput
	}
	rec := outboxModel{RecordID: record.RecordID, EventClass: record.EventClass, Envelope: string(envelope), CreatedAt: record.CreatedAt}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var recs []outboxModel
	if err := r.db.WithContext(ctx).Where("sent_at IS NULL").Order("created_at asc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(recs))
	for _, rec := range recs {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal([]byte(rec.Envelope), &envelope); err != nil {
			continue
		}
		out = append(out, ports.OutboxRecord{RecordID: rec.RecordID, EventClass: rec.EventClass, Envelope: envelope, CreatedAt: rec.CreatedAt, SentAt: rec.SentAt})
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainAgent(rec agentModel) domain.Agent {
	out := domain.Agent{
		Address: rec.Address,
		Balance: rec.Balance,
		Stats: domain.AgentStats{
			TotalTransactions:      rec.TotalTransactions,
			SuccessfulTransactions: rec.SuccessfulTransactions,
			DisputesWon:            rec.DisputesWon,
			DisputesLost:           rec.DisputesLost,
			TotalEarned:            rec.TotalEarned,
			TotalSpent:             rec.TotalSpent,
		},
		LossTier:  rec.LossTier,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.RegisteredAt != nil {
		out.RegisteredAt = *rec.RegisteredAt
	}
	return out
}

func toAgentModel(row domain.Agent) agentModel {
	rec := agentModel{
		Address:                domain.NormalizeAddress(row.Address),
		Balance:                row.Balance,
		TotalTransactions:      row.Stats.TotalTransactions,
		SuccessfulTransactions: row.Stats.SuccessfulTransactions,
		DisputesWon:            row.Stats.DisputesWon,
		DisputesLost:           row.Stats.DisputesLost,
		TotalEarned:            row.Stats.TotalEarned,
		TotalSpent:             row.Stats.TotalSpent,
		LossTier:               row.LossTier,
		UpdatedAt:              row.UpdatedAt,
	}
	if !row.RegisteredAt.IsZero() {
		t := row.RegisteredAt
		rec.RegisteredAt = &t
	}
	return rec
}

func toDomainService(rec serviceModel) domain.Service {
	return domain.Service{
		ServiceID:     rec.ServiceID,
		Provider:      rec.Provider,
		TermsHash:     rec.TermsHash,
		Price:         rec.Price,
		BondRequired:  rec.BondRequired,
		Status:        rec.Status,
		TotalCalls:    rec.TotalCalls,
		TotalDisputes: rec.TotalDisputes,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func toServiceModel(row domain.Service) serviceModel {
	return serviceModel{
		ServiceID:     row.ServiceID,
		Provider:      row.Provider,
		TermsHash:     row.TermsHash,
		Price:         row.Price,
		BondRequired:  row.BondRequired,
		Status:        row.Status,
		TotalCalls:    row.TotalCalls,
		TotalDisputes: row.TotalDisputes,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toDomainTransaction(rec transactionModel) domain.Transaction {
	out := domain.Transaction{
		TransactionID: rec.TransactionID,
		ServiceID:     rec.ServiceID,
		Consumer:      rec.Consumer,
		Provider:      rec.Provider,
		Payment:       rec.Payment,
		RequestHash:   rec.RequestHash,
		ResponseHash:  rec.ResponseHash,
		Status:        rec.Status,
		DisputeID:     rec.DisputeID,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.FulfilledAt != nil {
		out.FulfilledAt = *rec.FulfilledAt
	}
	return out
}

func toTransactionModel(row domain.Transaction) transactionModel {
	rec := transactionModel{
		TransactionID: row.TransactionID,
		ServiceID:     row.ServiceID,
		Consumer:      row.Consumer,
		Provider:      row.Provider,
		Payment:       row.Payment,
		RequestHash:   row.RequestHash,
		ResponseHash:  row.ResponseHash,
		Status:        row.Status,
		DisputeID:     row.DisputeID,
		CreatedAt:     row.CreatedAt,
	}
	if !row.FulfilledAt.IsZero() {
		t := row.FulfilledAt
		rec.FulfilledAt = &t
	}
	return rec
}

func toDomainDispute(rec disputeModel) domain.Dispute {
	out := domain.Dispute{
		DisputeID:         rec.DisputeID,
		TransactionID:     rec.TransactionID,
		Plaintiff:         rec.Plaintiff,
		Defendant:         rec.Defendant,
		Stake:             rec.Stake,
		JudgeFee:          rec.JudgeFee,
		Tier:              rec.Tier,
		PlaintiffEvidence: rec.PlaintiffEvidence,
		DefendantEvidence: rec.DefendantEvidence,
		Resolved:          rec.Resolved,
		Winner:            rec.Winner,
		FiledAt:           rec.FiledAt,
	}
	if rec.ResolvedAt != nil {
		out.ResolvedAt = *rec.ResolvedAt
	}
	return out
}

func toDisputeModel(row domain.Dispute) disputeModel {
	rec := disputeModel{
		DisputeID:         row.DisputeID,
		TransactionID:     row.TransactionID,
		Plaintiff:         row.Plaintiff,
		Defendant:         row.Defendant,
		Stake:             row.Stake,
		JudgeFee:          row.JudgeFee,
		Tier:              row.Tier,
		PlaintiffEvidence: row.PlaintiffEvidence,
		DefendantEvidence: row.DefendantEvidence,
		Resolved:          row.Resolved,
		Winner:            row.Winner,
		FiledAt:           row.FiledAt,
	}
	if !row.ResolvedAt.IsZero() {
		t := row.ResolvedAt
		rec.ResolvedAt = &t
	}
	return rec
}
