// Package registry holds clients for the external identity and reputation
// registries plus the judge authority policy.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

// HTTPIdentityGate queries the identity registry for membership counts.
type HTTPIdentityGate struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPIdentityGate(baseURL string, httpClient *http.Client) *HTTPIdentityGate {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPIdentityGate{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type membershipResponse struct {
	Agent string `json:"agent"`
	Count uint64 `json:"count"`
}

func (g *HTTPIdentityGate) MembershipCount(ctx context.Context, agent string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/identities/"+domain.NormalizeAddress(agent)+"/memberships", nil)
	if err != nil {
		return 0, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("identity registry status %d", resp.StatusCode)
	}
	var out membershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// HTTPReputationNotifier pushes score deltas to the reputation registry.
// The ledger treats delivery as best-effort; callers discard errors.
type HTTPReputationNotifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPReputationNotifier(baseURL string, httpClient *http.Client) *HTTPReputationNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPReputationNotifier{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type reputationDelta struct {
	Agent    string `json:"agent"`
	Category string `json:"category"`
	Delta    int64  `json:"delta"`
}

func (n *HTTPReputationNotifier) Notify(ctx context.Context, agent, category string, delta int64) error {
	body, err := json.Marshal(reputationDelta{Agent: domain.NormalizeAddress(agent), Category: category, Delta: delta})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/reputation/deltas", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reputation registry status %d", resp.StatusCode)
	}
	return nil
}

// StaticJudgeAuthority authorizes rulings from a fixed allow-list of judge
// addresses. Swappable for a quorum policy behind the same port.
type StaticJudgeAuthority struct {
	judges map[string]struct{}
}

func NewStaticJudgeAuthority(addresses []string) *StaticJudgeAuthority {
	judges := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		a = domain.NormalizeAddress(a)
		if a != "" {
			judges[a] = struct{}{}
		}
	}
	return &StaticJudgeAuthority{judges: judges}
}

func (a *StaticJudgeAuthority) IsJudge(_ context.Context, principal string) (bool, error) {
	_, ok := a.judges[domain.NormalizeAddress(principal)]
	return ok, nil
}
