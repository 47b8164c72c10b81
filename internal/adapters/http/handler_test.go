package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	eventadapter "github.com/agentcourt/clearinghouse/internal/adapters/events"
	"github.com/agentcourt/clearinghouse/internal/adapters/memory"
	"github.com/agentcourt/clearinghouse/internal/adapters/registry"
	"github.com/agentcourt/clearinghouse/internal/application"
	"github.com/agentcourt/clearinghouse/internal/contracts"
)

func newTestRouter(t *testing.T, jwtSecret string) (http.Handler, *registry.MemoryIdentityGate) {
	t.Helper()
	repos := memory.NewRepositories()
	gate := registry.NewMemoryIdentityGate()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			IdentityRequired: true,
			OperatorAddress:  "0xoperator",
		},
		Agents:       repos.Agents,
		Services:     repos.Services,
		Transactions: repos.Transactions,
		Disputes:     repos.Disputes,
		Evidence:     repos.Evidence,
		Idempotency:  repos.Idempotency,
		EventDedup:   repos.EventDedup,
		Outbox:       repos.Outbox,
		Identity:     gate,
		Reputation:   registry.NewMemoryReputationNotifier(),
		Authority:    registry.NewStaticJudgeAuthority([]string{"0xjudge"}),
		DomainEvents: eventadapter.NewMemoryDomainPublisher(),
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})
	return NewRouter(NewHandler(svc), jwtSecret), gate
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer, idemKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil { t.Fatalf("encode body: %v", err) }
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) contracts.ErrorResponse {
	t.Helper()
	var resp contracts.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil { t.Fatalf("decode error response: %v", err) }
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "")
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, router, http.MethodGet, path, "", "", nil)
		if rec.Code != http.StatusOK { t.Fatalf("%s returned %d", path, rec.Code) }
	}
}

func TestMissingBearerRejected(t *testing.T) {
	router, _ := newTestRouter(t, "")
	rec := doJSON(t, router, http.MethodPost, "/v1/agents/register", "", "k1", contracts.RegisterAgentRequest{Deposit: 500_000})
	if rec.Code != http.StatusUnauthorized { t.Fatalf("expected 401, got %d", rec.Code) }
	if resp := decodeError(t, rec); resp.Error.Code != "unauthorized" { t.Fatalf("wrong code: %s", resp.Error.Code) }
}

func TestRegisterAndFetchAgent(t *testing.T) {
	router, gate := newTestRouter(t, "")
	gate.SetCount("0xalice", 1)
	rec := doJSON(t, router, http.MethodPost, "/v1/agents/register", "0xalice", "reg-1", contracts.RegisterAgentRequest{Deposit: 500_000})
	if rec.Code != http.StatusOK { t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String()) }

	rec = doJSON(t, router, http.MethodGet, "/v1/agents/0xalice", "0xalice", "", nil)
	if rec.Code != http.StatusOK { t.Fatalf("get agent returned %d", rec.Code) }
	var resp struct {
		Data contracts.AgentResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil { t.Fatalf("decode: %v", err) }
	if resp.Data.Address != "0xalice" || resp.Data.Balance != 500_000 { t.Fatalf("unexpected agent: %+v", resp.Data) }
}

func TestRegisterBelowMinimumMapsTo400(t *testing.T) {
	router, gate := newTestRouter(t, "")
	gate.SetCount("0xalice", 1)
	rec := doJSON(t, router, http.MethodPost, "/v1/agents/register", "0xalice", "reg-low", contracts.RegisterAgentRequest{Deposit: 1})
	if rec.Code != http.StatusBadRequest { t.Fatalf("expected 400, got %d", rec.Code) }
	if resp := decodeError(t, rec); resp.Error.Code != "deposit_below_minimum" { t.Fatalf("wrong code: %s", resp.Error.Code) }
}

func TestMutationsRequireIdempotencyKey(t *testing.T) {
	router, gate := newTestRouter(t, "")
	gate.SetCount("0xalice", 1)
	rec := doJSON(t, router, http.MethodPost, "/v1/agents/register", "0xalice", "", contracts.RegisterAgentRequest{Deposit: 500_000})
	if rec.Code != http.StatusBadRequest { t.Fatalf("expected 400, got %d", rec.Code) }
	if resp := decodeError(t, rec); resp.Error.Code != "idempotency_key_required" { t.Fatalf("wrong code: %s", resp.Error.Code) }
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	router, gate := newTestRouter(t, secret)
	gate.SetCount("0xalice", 1)

	rec := doJSON(t, router, http.MethodPost, "/v1/agents/register", "not-a-jwt", "reg-1", contracts.RegisterAgentRequest{Deposit: 500_000})
	if rec.Code != http.StatusUnauthorized { t.Fatalf("garbage token must be rejected, got %d", rec.Code) }

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, agentClaims{
		Address: "0xalice",
		Role:    "agent",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0xalice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil { t.Fatalf("sign token: %v", err) }

	rec = doJSON(t, router, http.MethodPost, "/v1/agents/register", signed, "reg-2", contracts.RegisterAgentRequest{Deposit: 500_000})
	if rec.Code != http.StatusOK { t.Fatalf("valid token rejected: %d %s", rec.Code, rec.Body.String()) }
}

func TestUnknownTransactionIs404(t *testing.T) {
	router, gate := newTestRouter(t, "")
	gate.SetCount("0xalice", 1)
	rec := doJSON(t, router, http.MethodGet, "/v1/transactions/99", "0xalice", "", nil)
	if rec.Code != http.StatusNotFound { t.Fatalf("expected 404, got %d", rec.Code) }
}
