package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

// Config is the resolved runtime configuration for the clearinghouse ledger.
// It merges file defaults and environment overrides to support both local and
// deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	// UseMemoryStores swaps postgres/redis for in-process stores. Local
	// runs and demos only.
	UseMemoryStores bool

	JWTSecret string

	MinDeposit        uint64
	FeeRateBps        uint64
	JudgeFees         []uint64
	AutoCompleteGrace time.Duration
	IdentityRequired  bool
	OperatorAddress   string
	JudgeAddresses    []string

	IdentityRegistryURL   string
	ReputationRegistryURL string
	RegistryHTTPTimeout   time.Duration

	MaxDBConns         int32
	IdempotencyTTL     time.Duration
	EventDedupTTL      time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL           string `yaml:"postgres_url"`
		RedisURL              string `yaml:"redis_url"`
		IdentityRegistryURL   string `yaml:"identity_registry_url"`
		ReputationRegistryURL string `yaml:"reputation_registry_url"`
	} `yaml:"dependencies"`
	Ledger struct {
		MinDeposit             uint64   `yaml:"min_deposit"`
		FeeRateBps             uint64   `yaml:"fee_rate_bps"`
		JudgeFees              []uint64 `yaml:"judge_fees"`
		AutoCompleteGraceSecs  int      `yaml:"auto_complete_grace_seconds"`
		IdentityRequired       *bool    `yaml:"identity_required"`
		OperatorAddress        string   `yaml:"operator_address"`
		JudgeAddresses         []string `yaml:"judge_addresses"`
	} `yaml:"ledger"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "clearinghouse-ledger",
		HTTPPort:            8080,
		GRPCPort:            9090,
		MinDeposit:          domain.DefaultMinDeposit,
		FeeRateBps:          domain.DefaultFeeRateBps,
		AutoCompleteGrace:   domain.DefaultAutoCompleteGrace,
		IdentityRequired:    true,
		RegistryHTTPTimeout: 5 * time.Second,
		MaxDBConns:          20,
		IdempotencyTTL:      7 * 24 * time.Hour,
		EventDedupTTL:       7 * 24 * time.Hour,
		OutboxPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
	}
	schedule := domain.DefaultFeeSchedule()
	cfg.JudgeFees = schedule[:]

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.IdentityRegistryURL != "" {
			cfg.IdentityRegistryURL = f.Dependencies.IdentityRegistryURL
		}
		if f.Dependencies.ReputationRegistryURL != "" {
			cfg.ReputationRegistryURL = f.Dependencies.ReputationRegistryURL
		}
		if f.Ledger.MinDeposit > 0 {
			cfg.MinDeposit = f.Ledger.MinDeposit
		}
		if f.Ledger.FeeRateBps > 0 {
			cfg.FeeRateBps = f.Ledger.FeeRateBps
		}
		if len(f.Ledger.JudgeFees) == len(schedule) {
			cfg.JudgeFees = f.Ledger.JudgeFees
		}
		if f.Ledger.AutoCompleteGraceSecs > 0 {
			cfg.AutoCompleteGrace = time.Duration(f.Ledger.AutoCompleteGraceSecs) * time.Second
		}
		if f.Ledger.IdentityRequired != nil {
			cfg.IdentityRequired = *f.Ledger.IdentityRequired
		}
		if f.Ledger.OperatorAddress != "" {
			cfg.OperatorAddress = f.Ledger.OperatorAddress
		}
		if len(f.Ledger.JudgeAddresses) > 0 {
			cfg.JudgeAddresses = f.Ledger.JudgeAddresses
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.UseMemoryStores = envBool("USE_MEMORY_STORES", cfg.DatabaseURL == "" && cfg.RedisURL == "")
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.IdentityRegistryURL = envOrDefault("IDENTITY_REGISTRY_URL", cfg.IdentityRegistryURL)
	cfg.ReputationRegistryURL = envOrDefault("REPUTATION_REGISTRY_URL", cfg.ReputationRegistryURL)
	cfg.OperatorAddress = envOrDefault("OPERATOR_ADDRESS", cfg.OperatorAddress)
	cfg.JudgeAddresses = envCSV("JUDGE_ADDRESSES", cfg.JudgeAddresses)
	cfg.IdentityRequired = envBool("IDENTITY_REQUIRED", cfg.IdentityRequired)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MinDeposit = envUint("MIN_DEPOSIT", cfg.MinDeposit)
	cfg.FeeRateBps = envUint("FEE_RATE_BPS", cfg.FeeRateBps)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AutoCompleteGrace = time.Duration(envInt("AUTO_COMPLETE_GRACE_SECONDS", int(cfg.AutoCompleteGrace.Seconds()))) * time.Second
	cfg.RegistryHTTPTimeout = time.Duration(envInt("REGISTRY_HTTP_TIMEOUT_SECONDS", int(cfg.RegistryHTTPTimeout.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)

	if !cfg.UseMemoryStores {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("missing REDIS_URL")
		}
	}
	if len(cfg.JudgeAddresses) == 0 {
		return Config{}, fmt.Errorf("missing JUDGE_ADDRESSES")
	}
	if cfg.OperatorAddress == "" {
		cfg.OperatorAddress = cfg.JudgeAddresses[0]
	}

	return cfg, nil
}

// FeeSchedule converts the configured per-tier fees into the domain type.
func (c Config) FeeSchedule() domain.FeeSchedule {
	out := domain.DefaultFeeSchedule()
	if len(c.JudgeFees) == len(out) {
		for i, fee := range c.JudgeFees {
			if fee > 0 {
				out[i] = fee
			}
		}
	}
	return out
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envUint(name string, fallback uint64) uint64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
