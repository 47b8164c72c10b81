package registry

import (
	"context"
	"sync"

	"github.com/agentcourt/clearinghouse/internal/domain"
)

// MemoryIdentityGate serves membership counts from a local map. Used in
// tests and when no identity registry is configured.
type MemoryIdentityGate struct {
	mu     sync.Mutex
	counts map[string]uint64
	err    error
}

func NewMemoryIdentityGate() *MemoryIdentityGate {
	return &MemoryIdentityGate{counts: map[string]uint64{}}
}

func (g *MemoryIdentityGate) SetCount(agent string, count uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[domain.NormalizeAddress(agent)] = count
}

// Fail makes every lookup return the given error until cleared with nil.
func (g *MemoryIdentityGate) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *MemoryIdentityGate) MembershipCount(_ context.Context, agent string) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return 0, g.err
	}
	return g.counts[domain.NormalizeAddress(agent)], nil
}

type ReputationNotice struct {
	Agent    string
	Category string
	Delta    int64
}

// MemoryReputationNotifier records notices instead of delivering them.
type MemoryReputationNotifier struct {
	mu      sync.Mutex
	notices []ReputationNotice
	err     error
}

func NewMemoryReputationNotifier() *MemoryReputationNotifier {
	return &MemoryReputationNotifier{}
}

func (n *MemoryReputationNotifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *MemoryReputationNotifier) Notify(_ context.Context, agent, category string, delta int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, ReputationNotice{Agent: domain.NormalizeAddress(agent), Category: category, Delta: delta})
	return nil
}

func (n *MemoryReputationNotifier) Notices() []ReputationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ReputationNotice, len(n.notices))
	copy(out, n.notices)
	return out
}
