package domain

import (
	"strings"
	"time"
)

const (
	ServiceStatusActive  = "active"
	ServiceStatusPaused  = "paused"
	ServiceStatusRetired = "retired"
)

// Service is a provider-published listing. Retired services stay queryable
// for history; nothing is ever deleted.
type Service struct {
	ServiceID     uint64    `json:"service_id"`
	Provider      string    `json:"provider"`
	TermsHash     string    `json:"terms_hash"`
	Price         uint64    `json:"price"`
	BondRequired  uint64    `json:"bond_required"`
	Status        string    `json:"status"`
	TotalCalls    uint64    `json:"total_calls"`
	TotalDisputes uint64    `json:"total_disputes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NormalizeServiceStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ServiceStatusActive:
		return ServiceStatusActive
	case ServiceStatusPaused:
		return ServiceStatusPaused
	case ServiceStatusRetired:
		return ServiceStatusRetired
	default:
		return ""
	}
}
