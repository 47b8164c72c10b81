package http

import (
	"encoding/json"
	"net/http"

	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, contracts.SuccessResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message, requestID string) {
	writeJSON(w, status, contracts.ErrorResponse{
		Status: "error",
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func mapDomainError(err error) (status int, code string) {
	switch err {
	case nil:
		return http.StatusOK, ""
	case domain.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case domain.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case domain.ErrZeroAmount:
		return http.StatusBadRequest, "zero_amount"
	case domain.ErrBelowMinimum:
		return http.StatusBadRequest, "deposit_below_minimum"
	case domain.ErrNotRegistered:
		return http.StatusForbidden, "not_registered"
	case domain.ErrAlreadyRegistered:
		return http.StatusConflict, "already_registered"
	case domain.ErrInsufficientBalance:
		return http.StatusPaymentRequired, "insufficient_balance"
	case domain.ErrAmountOverflow:
		return http.StatusBadRequest, "amount_overflow"
	case domain.ErrInvalidState:
		return http.StatusConflict, "invalid_state"
	case domain.ErrAlreadyResolved:
		return http.StatusConflict, "already_resolved"
	case domain.ErrAlreadyResponded:
		return http.StatusConflict, "already_responded"
	case domain.ErrNoIdentity:
		return http.StatusForbidden, "identity_required"
	case domain.ErrIdentityUnavailable:
		return http.StatusServiceUnavailable, "identity_unavailable"
	case domain.ErrIdempotencyRequired:
		return http.StatusBadRequest, "idempotency_key_required"
	case domain.ErrIdempotencyConflict, domain.ErrConflict:
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
