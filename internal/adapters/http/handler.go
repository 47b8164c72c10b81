package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentcourt/clearinghouse/internal/application"
	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

func (h *Handler) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req contracts.RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	agent, err := h.service.Register(r.Context(), actor, application.RegisterAgentInput{Deposit: req.Deposit})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "agent registered", toAgentResponse(agent))
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	var req contracts.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	agent, err := h.service.Deposit(r.Context(), actor, application.DepositInput{Amount: req.Amount})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "deposit credited", toAgentResponse(agent))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req contracts.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	agent, err := h.service.Withdraw(r.Context(), actor, application.WithdrawInput{Amount: req.Amount})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "withdrawal debited", toAgentResponse(agent))
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	agent, err := h.service.GetAgent(r.Context(), actor, chi.URLParam(r, "address"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "agent", toAgentResponse(agent))
}

func (h *Handler) getAgentStats(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	agent, err := h.service.GetAgent(r.Context(), actor, chi.URLParam(r, "address"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "agent stats", contracts.AgentStatsResponse{
		Address:                agent.Address,
		TotalTransactions:      agent.Stats.TotalTransactions,
		SuccessfulTransactions: agent.Stats.SuccessfulTransactions,
		DisputesWon:            agent.Stats.DisputesWon,
		DisputesLost:           agent.Stats.DisputesLost,
		TotalEarned:            agent.Stats.TotalEarned,
		TotalSpent:             agent.Stats.TotalSpent,
		SuccessRate:            agent.SuccessRate(),
	})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	agent, err := h.service.GetAgent(r.Context(), actor, chi.URLParam(r, "address"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "balance", contracts.BalanceResponse{Address: agent.Address, Balance: agent.Balance, Eligible: agent.Eligible(h.service.MinDeposit())})
}

func (h *Handler) getJudgeFee(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	address := chi.URLParam(r, "address")
	fee, tier, err := h.service.JudgeFeeFor(r.Context(), actor, address)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "judge fee", contracts.JudgeFeeResponse{Agent: domain.NormalizeAddress(address), Fee: fee, Tier: tier, TierName: domain.TierName(tier)})
}

func (h *Handler) checkIdentity(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	ok, err := h.service.CheckIdentity(r.Context(), actor, chi.URLParam(r, "address"))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "identity", map[string]bool{"has_identity": ok})
}

func (h *Handler) registerService(w http.ResponseWriter, r *http.Request) {
	var req contracts.RegisterServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	svc, err := h.service.RegisterService(r.Context(), actor, application.RegisterServiceInput{TermsHash: req.TermsHash, Price: req.Price, BondRequired: req.BondRequired})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "service registered", toServiceResponse(svc))
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "serviceID")
	if !ok { return }
	var req contracts.UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	svc, err := h.service.UpdateService(r.Context(), actor, application.UpdateServiceInput{ServiceID: id, Status: req.Status})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "service updated", toServiceResponse(svc))
}

func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "serviceID")
	if !ok { return }
	actor := actorFromContext(r.Context())
	svc, err := h.service.GetService(r.Context(), actor, id)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "service", toServiceResponse(svc))
}

func (h *Handler) requestService(w http.ResponseWriter, r *http.Request) {
	var req contracts.RequestServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	tx, err := h.service.RequestService(r.Context(), actor, application.RequestServiceInput{ServiceID: req.ServiceID, RequestHash: req.RequestHash})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "service requested", toTransactionResponse(tx))
}

func (h *Handler) fulfillTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "transactionID")
	if !ok { return }
	var req contracts.FulfillTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	tx, err := h.service.FulfillTransaction(r.Context(), actor, application.FulfillTransactionInput{TransactionID: id, ResponseHash: req.ResponseHash})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "transaction fulfilled", toTransactionResponse(tx))
}

func (h *Handler) confirmTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "transactionID")
	if !ok { return }
	actor := actorFromContext(r.Context())
	tx, err := h.service.ConfirmTransaction(r.Context(), actor, application.ConfirmTransactionInput{TransactionID: id})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "transaction settled", toTransactionResponse(tx))
}

func (h *Handler) autoCompleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "transactionID")
	if !ok { return }
	actor := actorFromContext(r.Context())
	tx, err := h.service.AutoComplete(r.Context(), actor, application.AutoCompleteInput{TransactionID: id})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "transaction auto-completed", toTransactionResponse(tx))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "transactionID")
	if !ok { return }
	actor := actorFromContext(r.Context())
	tx, err := h.service.GetTransaction(r.Context(), actor, id)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "transaction", toTransactionResponse(tx))
}

func (h *Handler) fileDispute(w http.ResponseWriter, r *http.Request) {
	var req contracts.FileDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.FileDispute(r.Context(), actor, application.FileDisputeInput{TransactionID: req.TransactionID, Stake: req.Stake, EvidenceHash: req.EvidenceHash})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "dispute filed", toDisputeResponse(dispute))
}

func (h *Handler) respondDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "disputeID")
	if !ok { return }
	var req contracts.RespondDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.RespondDispute(r.Context(), actor, application.RespondDisputeInput{DisputeID: id, EvidenceHash: req.EvidenceHash})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "evidence recorded", toDisputeResponse(dispute))
}

func (h *Handler) submitRuling(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "disputeID")
	if !ok { return }
	var req contracts.SubmitRulingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.SubmitRuling(r.Context(), actor, application.SubmitRulingInput{DisputeID: id, Winner: req.Winner})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "ruling recorded", toDisputeResponse(dispute))
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "disputeID")
	if !ok { return }
	actor := actorFromContext(r.Context())
	dispute, err := h.service.GetDispute(r.Context(), actor, id)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "dispute", toDisputeResponse(dispute))
}

func (h *Handler) commitEvidence(w http.ResponseWriter, r *http.Request) {
	var req contracts.CommitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", requestIDFromContext(r.Context())); return }
	actor := actorFromContext(r.Context())
	commit, err := h.service.CommitEvidence(r.Context(), actor, application.CommitEvidenceInput{InteractionKey: req.InteractionKey, EvidenceHash: req.EvidenceHash})
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "evidence committed", toEvidenceResponse(commit))
}

func (h *Handler) getEvidence(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	commit, err := h.service.GetEvidence(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("interaction_key")), strings.TrimSpace(r.URL.Query().Get("committer")))
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "evidence", toEvidenceResponse(commit))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	st, err := h.service.Status(r.Context(), actor)
	if err != nil { code, c := mapDomainError(err); writeError(w, code, c, err.Error(), requestIDFromContext(r.Context())); return }
	writeSuccess(w, http.StatusOK, "status", contracts.StatusResponse{ServiceCount: st.ServiceCount, TransactionCount: st.TransactionCount, DisputeCount: st.DisputeCount, MinDeposit: st.MinDeposit, FeeRateBps: st.FeeRateBps, Judge: st.Operator})
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, param)), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid "+param, requestIDFromContext(r.Context()))
		return 0, false
	}
	return id, true
}

func toAgentResponse(agent domain.Agent) contracts.AgentResponse {
	out := contracts.AgentResponse{Address: agent.Address, Balance: agent.Balance, Registered: agent.Registered(), LossTier: agent.LossTier}
	if agent.Registered() {
		out.RegisteredAt = agent.RegisteredAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toServiceResponse(svc domain.Service) contracts.ServiceResponse {
	return contracts.ServiceResponse{
		ServiceID:     svc.ServiceID,
		Provider:      svc.Provider,
		TermsHash:     svc.TermsHash,
		Price:         svc.Price,
		BondRequired:  svc.BondRequired,
		Status:        svc.Status,
		TotalCalls:    svc.TotalCalls,
		TotalDisputes: svc.TotalDisputes,
	}
}

func toTransactionResponse(tx domain.Transaction) contracts.TransactionResponse {
	return contracts.TransactionResponse{
		TransactionID: tx.TransactionID,
		ServiceID:     tx.ServiceID,
		Consumer:      tx.Consumer,
		Provider:      tx.Provider,
		Payment:       tx.Payment,
		RequestHash:   tx.RequestHash,
		ResponseHash:  tx.ResponseHash,
		Status:        tx.Status,
		DisputeID:     tx.DisputeID,
	}
}

func toDisputeResponse(dispute domain.Dispute) contracts.DisputeResponse {
	return contracts.DisputeResponse{
		DisputeID:         dispute.DisputeID,
		TransactionID:     dispute.TransactionID,
		Plaintiff:         dispute.Plaintiff,
		Defendant:         dispute.Defendant,
		Stake:             dispute.Stake,
		JudgeFee:          dispute.JudgeFee,
		Tier:              dispute.Tier,
		TierName:          domain.TierName(dispute.Tier),
		PlaintiffEvidence: dispute.PlaintiffEvidence,
		DefendantEvidence: dispute.DefendantEvidence,
		Resolved:          dispute.Resolved,
		Winner:            dispute.Winner,
	}
}

func toEvidenceResponse(commit domain.EvidenceCommit) contracts.EvidenceCommitResponse {
	return contracts.EvidenceCommitResponse{
		Key:            commit.Key,
		InteractionKey: commit.InteractionKey,
		Committer:      commit.Committer,
		EvidenceHash:   commit.EvidenceHash,
		CommittedAt:    commit.CommittedAt.UTC().Format(time.RFC3339),
	}
}
