package application

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	eventadapter "github.com/agentcourt/clearinghouse/internal/adapters/events"
	"github.com/agentcourt/clearinghouse/internal/adapters/memory"
	"github.com/agentcourt/clearinghouse/internal/adapters/registry"
	"github.com/agentcourt/clearinghouse/internal/contracts"
	"github.com/agentcourt/clearinghouse/internal/domain"
)

const (
	consumerAddr = "0xaaa0000000000000000000000000000000000001"
	providerAddr = "0xbbb0000000000000000000000000000000000002"
	operatorAddr = "0xccc0000000000000000000000000000000000003"
	judgeAddr    = "0xddd0000000000000000000000000000000000004"
)

type testRig struct {
	svc        *Service
	repos      *memory.Repositories
	gate       *registry.MemoryIdentityGate
	reputation *registry.MemoryReputationNotifier
	domainPub  *eventadapter.MemoryDomainPublisher
	now        time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	repos := memory.NewRepositories()
	gate := registry.NewMemoryIdentityGate()
	reputation := registry.NewMemoryReputationNotifier()
	domainPub := eventadapter.NewMemoryDomainPublisher()
	rig := &testRig{repos: repos, gate: gate, reputation: reputation, domainPub: domainPub, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rig.svc = NewService(Dependencies{
		Config: Config{
			IdentityRequired: true,
			OperatorAddress:  operatorAddr,
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
		Reputation:   reputation,
		Authority:    registry.NewStaticJudgeAuthority([]string{judgeAddr}),
		DomainEvents: domainPub,
		Analytics:    eventadapter.NewMemoryAnalyticsPublisher(),
		DLQ:          eventadapter.NewLoggingDLQPublisher(),
	})
	rig.svc.nowFn = func() time.Time { return rig.now }
	return rig
}

func (rig *testRig) advance(d time.Duration) { rig.now = rig.now.Add(d) }

func actorFor(addr, idemKey string) Actor {
	return Actor{SubjectID: addr, Role: "agent", RequestID: "req-" + idemKey, IdempotencyKey: idemKey}
}

func (rig *testRig) registerAgent(t *testing.T, addr string, deposit uint64) domain.Agent {
	t.Helper()
	rig.gate.SetCount(addr, 1)
	agent, err := rig.svc.Register(context.Background(), actorFor(addr, "reg-"+addr), RegisterAgentInput{Deposit: deposit})
	if err != nil { t.Fatalf("Register %s: %v", addr, err) }
	return agent
}

func (rig *testRig) listServiceAndRequest(t *testing.T, price, bond uint64) domain.Transaction {
	t.Helper()
	svcRow, err := rig.svc.RegisterService(context.Background(), actorFor(providerAddr, "svc-1"), RegisterServiceInput{TermsHash: "0xterms", Price: price, BondRequired: bond})
	if err != nil { t.Fatalf("RegisterService: %v", err) }
	tx, err := rig.svc.RequestService(context.Background(), actorFor(consumerAddr, "req-1"), RequestServiceInput{ServiceID: svcRow.ServiceID, RequestHash: "0xreq"})
	if err != nil { t.Fatalf("RequestService: %v", err) }
	return tx
}

// totalHeld sums free balances across every account. Frozen amounts come
// back to some balance on settlement, so the sum of deposits is invariant.
func (rig *testRig) totalHeld(t *testing.T, addrs ...string) uint64 {
	t.Helper()
	var total uint64
	for _, addr := range addrs {
		agent, err := rig.repos.Agents.Get(context.Background(), addr)
		if err != nil && !errors.Is(err, domain.ErrNotFound) { t.Fatalf("Get %s: %v", addr, err) }
		total += agent.Balance
	}
	return total
}

func TestRegisterRequiresMinimumDeposit(t *testing.T) {
	rig := newTestRig(t)
	rig.gate.SetCount(consumerAddr, 1)
	_, err := rig.svc.Register(context.Background(), actorFor(consumerAddr, "reg-low"), RegisterAgentInput{Deposit: domain.DefaultMinDeposit - 1})
	if !errors.Is(err, domain.ErrBelowMinimum) { t.Fatalf("expected ErrBelowMinimum, got %v", err) }
}

func TestRegisterRequiresIdentityMembership(t *testing.T) {
	rig := newTestRig(t)
	_, err := rig.svc.Register(context.Background(), actorFor(consumerAddr, "reg-noid"), RegisterAgentInput{Deposit: domain.DefaultMinDeposit})
	if !errors.Is(err, domain.ErrNoIdentity) { t.Fatalf("expected ErrNoIdentity, got %v", err) }
}

func TestRegisterAbortsWhenIdentityGateDown(t *testing.T) {
	rig := newTestRig(t)
	rig.gate.Fail(errors.New("registry timeout"))
	_, err := rig.svc.Register(context.Background(), actorFor(consumerAddr, "reg-down"), RegisterAgentInput{Deposit: domain.DefaultMinDeposit})
	if !errors.Is(err, domain.ErrIdentityUnavailable) { t.Fatalf("expected ErrIdentityUnavailable, got %v", err) }
}

func TestRegisterTwiceRejected(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, domain.DefaultMinDeposit)
	_, err := rig.svc.Register(context.Background(), actorFor(consumerAddr, "reg-again"), RegisterAgentInput{Deposit: domain.DefaultMinDeposit})
	if !errors.Is(err, domain.ErrAlreadyRegistered) { t.Fatalf("expected ErrAlreadyRegistered, got %v", err) }
}

func TestRegisterIdempotentReplay(t *testing.T) {
	rig := newTestRig(t)
	rig.gate.SetCount(consumerAddr, 1)
	actor := actorFor(consumerAddr, "reg-replay")
	first, err := rig.svc.Register(context.Background(), actor, RegisterAgentInput{Deposit: 500_000})
	if err != nil { t.Fatalf("Register first: %v", err) }
	second, err := rig.svc.Register(context.Background(), actor, RegisterAgentInput{Deposit: 500_000})
	if err != nil { t.Fatalf("Register replay: %v", err) }
	if first.Address != second.Address || first.Balance != second.Balance { t.Fatalf("replay mismatch: first=%+v second=%+v", first, second) }
	agent, err := rig.repos.Agents.Get(context.Background(), consumerAddr)
	if err != nil { t.Fatalf("Get: %v", err) }
	if agent.Balance != 500_000 { t.Fatalf("replay must not double-credit, balance=%d", agent.Balance) }
}

func TestWithdrawCannotOverdraw(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 300_000)
	_, err := rig.svc.Withdraw(context.Background(), actorFor(consumerAddr, "wd-1"), WithdrawInput{Amount: 300_001})
	if !errors.Is(err, domain.ErrInsufficientBalance) { t.Fatalf("expected ErrInsufficientBalance, got %v", err) }
	agent, err := rig.svc.Withdraw(context.Background(), actorFor(consumerAddr, "wd-2"), WithdrawInput{Amount: 300_000})
	if err != nil { t.Fatalf("Withdraw: %v", err) }
	if agent.Balance != 0 { t.Fatalf("expected zero balance, got %d", agent.Balance) }
}

func TestHappyPathSettlement(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	tx := rig.listServiceAndRequest(t, 1_000_000, 0)

	consumer, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
	if consumer.Balance != 1_000_000 { t.Fatalf("payment not frozen, balance=%d", consumer.Balance) }
	if tx.Status != domain.TransactionStatusRequested { t.Fatalf("expected requested, got %s", tx.Status) }

	tx, err := rig.svc.FulfillTransaction(context.Background(), actorFor(providerAddr, "ful-1"), FulfillTransactionInput{TransactionID: tx.TransactionID, ResponseHash: "0xresp"})
	if err != nil { t.Fatalf("Fulfill: %v", err) }
	tx, err = rig.svc.ConfirmTransaction(context.Background(), actorFor(consumerAddr, "conf-1"), ConfirmTransactionInput{TransactionID: tx.TransactionID})
	if err != nil { t.Fatalf("Confirm: %v", err) }
	if tx.Status != domain.TransactionStatusCompleted { t.Fatalf("expected completed, got %s", tx.Status) }

	provider, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	operator, _ := rig.repos.Agents.Get(context.Background(), operatorAddr)
	if provider.Balance != 1_990_000 { t.Fatalf("provider payout wrong, balance=%d", provider.Balance) }
	if operator.Balance != 10_000 { t.Fatalf("protocol fee wrong, balance=%d", operator.Balance) }
	if provider.Stats.SuccessfulTransactions != 1 || provider.Stats.TotalEarned != 990_000 { t.Fatalf("provider stats wrong: %+v", provider.Stats) }
	consumer, _ = rig.repos.Agents.Get(context.Background(), consumerAddr)
	if consumer.Stats.TotalSpent != 1_000_000 || consumer.Stats.SuccessfulTransactions != 1 { t.Fatalf("consumer stats wrong: %+v", consumer.Stats) }

	if got := rig.totalHeld(t, consumerAddr, providerAddr, operatorAddr); got != 3_000_000 { t.Fatalf("value not conserved, total=%d", got) }

	if err := rig.svc.FlushOutbox(context.Background()); err != nil { t.Fatalf("FlushOutbox: %v", err) }
	events := rig.domainPub.Events()
	if len(events) != 1 || events[0].EventType != domain.EventTransactionCompleted { t.Fatalf("expected one transaction.completed, got %+v", events) }
}

func TestRegisterPreservesAccruedFees(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	tx := rig.listServiceAndRequest(t, 1_000_000, 0)
	tx, err := rig.svc.FulfillTransaction(context.Background(), actorFor(providerAddr, "ful-op"), FulfillTransactionInput{TransactionID: tx.TransactionID, ResponseHash: "0xresp"})
	if err != nil { t.Fatalf("Fulfill: %v", err) }
	if _, err := rig.svc.ConfirmTransaction(context.Background(), actorFor(consumerAddr, "conf-op"), ConfirmTransactionInput{TransactionID: tx.TransactionID}); err != nil { t.Fatalf("Confirm: %v", err) }

	// protocol fee landed on the operator row before it ever registered
	operator, err := rig.repos.Agents.Get(context.Background(), operatorAddr)
	if err != nil { t.Fatalf("Get operator: %v", err) }
	if operator.Balance != 10_000 || operator.Registered() { t.Fatalf("precondition wrong: %+v", operator) }

	registered := rig.registerAgent(t, operatorAddr, domain.DefaultMinDeposit)
	if registered.Balance != domain.DefaultMinDeposit+10_000 { t.Fatalf("accrued fees lost on registration: balance=%d", registered.Balance) }

	withdrawn, err := rig.svc.Withdraw(context.Background(), actorFor(operatorAddr, "wd-op"), WithdrawInput{Amount: domain.DefaultMinDeposit + 10_000})
	if err != nil { t.Fatalf("Withdraw: %v", err) }
	if withdrawn.Balance != 0 { t.Fatalf("operator could not withdraw full balance: %d", withdrawn.Balance) }
}

func TestDepositOverflowRejected(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, domain.DefaultMinDeposit)
	_, err := rig.svc.Deposit(context.Background(), actorFor(consumerAddr, "dep-max"), DepositInput{Amount: math.MaxUint64})
	if !errors.Is(err, domain.ErrAmountOverflow) { t.Fatalf("expected ErrAmountOverflow, got %v", err) }
	agent, err := rig.repos.Agents.Get(context.Background(), consumerAddr)
	if err != nil { t.Fatalf("Get: %v", err) }
	if agent.Balance != domain.DefaultMinDeposit { t.Fatalf("balance mutated on rejected deposit: %d", agent.Balance) }
}

func TestDisputeStakeOverflowRejected(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	_, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-max"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: math.MaxUint64/2 + 1, EvidenceHash: "0xpe"})
	if !errors.Is(err, domain.ErrAmountOverflow) { t.Fatalf("expected ErrAmountOverflow, got %v", err) }
}

func TestRequestRequiresBondCoverage(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 400_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	svcRow, err := rig.svc.RegisterService(context.Background(), actorFor(providerAddr, "svc-bond"), RegisterServiceInput{TermsHash: "0xterms", Price: 100_000, BondRequired: 500_000})
	if err != nil { t.Fatalf("RegisterService: %v", err) }
	_, err = rig.svc.RequestService(context.Background(), actorFor(consumerAddr, "req-bond"), RequestServiceInput{ServiceID: svcRow.ServiceID, RequestHash: "0xreq"})
	if !errors.Is(err, domain.ErrInsufficientBalance) { t.Fatalf("expected ErrInsufficientBalance, got %v", err) }
}

func TestProviderCannotConsumeOwnService(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, providerAddr, 2_000_000)
	svcRow, err := rig.svc.RegisterService(context.Background(), actorFor(providerAddr, "svc-self"), RegisterServiceInput{TermsHash: "0xterms", Price: 100_000})
	if err != nil { t.Fatalf("RegisterService: %v", err) }
	_, err = rig.svc.RequestService(context.Background(), actorFor(providerAddr, "req-self"), RequestServiceInput{ServiceID: svcRow.ServiceID, RequestHash: "0xreq"})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("expected ErrForbidden, got %v", err) }
}

func TestPausedServiceRejectsRequests(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	svcRow, err := rig.svc.RegisterService(context.Background(), actorFor(providerAddr, "svc-pause"), RegisterServiceInput{TermsHash: "0xterms", Price: 100_000})
	if err != nil { t.Fatalf("RegisterService: %v", err) }
	if _, err := rig.svc.UpdateService(context.Background(), actorFor(providerAddr, "upd-pause"), UpdateServiceInput{ServiceID: svcRow.ServiceID, Status: domain.ServiceStatusPaused}); err != nil { t.Fatalf("UpdateService: %v", err) }
	_, err = rig.svc.RequestService(context.Background(), actorFor(consumerAddr, "req-paused"), RequestServiceInput{ServiceID: svcRow.ServiceID, RequestHash: "0xreq"})
	if !errors.Is(err, domain.ErrInvalidState) { t.Fatalf("expected ErrInvalidState, got %v", err) }
}

func TestAutoCompleteAfterGrace(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	thirdParty := "0xeee0000000000000000000000000000000000005"
	rig.registerAgent(t, thirdParty, domain.DefaultMinDeposit)
	tx := rig.listServiceAndRequest(t, 1_000_000, 0)
	tx, err := rig.svc.FulfillTransaction(context.Background(), actorFor(providerAddr, "ful-ac"), FulfillTransactionInput{TransactionID: tx.TransactionID, ResponseHash: "0xresp"})
	if err != nil { t.Fatalf("Fulfill: %v", err) }

	_, err = rig.svc.AutoComplete(context.Background(), actorFor(thirdParty, "ac-early"), AutoCompleteInput{TransactionID: tx.TransactionID})
	if !errors.Is(err, domain.ErrInvalidState) { t.Fatalf("expected ErrInvalidState before grace, got %v", err) }

	rig.advance(domain.DefaultAutoCompleteGrace)
	tx, err = rig.svc.AutoComplete(context.Background(), actorFor(thirdParty, "ac-late"), AutoCompleteInput{TransactionID: tx.TransactionID})
	if err != nil { t.Fatalf("AutoComplete: %v", err) }
	if tx.Status != domain.TransactionStatusCompleted { t.Fatalf("expected completed, got %s", tx.Status) }
	provider, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	if provider.Balance != 1_990_000 { t.Fatalf("auto-complete payout differs from confirm path, balance=%d", provider.Balance) }
}

func fulfillTransactionForDispute(t *testing.T, rig *testRig) domain.Transaction {
	t.Helper()
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	tx := rig.listServiceAndRequest(t, 1_000_000, 0)
	tx, err := rig.svc.FulfillTransaction(context.Background(), actorFor(providerAddr, "ful-d"), FulfillTransactionInput{TransactionID: tx.TransactionID, ResponseHash: "0xresp"})
	if err != nil { t.Fatalf("Fulfill: %v", err) }
	return tx
}

func TestDisputeConsumerWins(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)

	dispute, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-1"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 200_000, EvidenceHash: "0xpe"})
	if err != nil { t.Fatalf("FileDispute: %v", err) }
	if dispute.Tier != domain.TierDistrict || dispute.JudgeFee != 50_000 { t.Fatalf("first dispute must quote district tier: %+v", dispute) }

	consumer, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
	provider, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	if consumer.Balance != 2_000_000-1_000_000-200_000-50_000 { t.Fatalf("plaintiff freeze wrong, balance=%d", consumer.Balance) }
	if provider.Balance != 1_000_000-200_000 { t.Fatalf("defendant stake not frozen, balance=%d", provider.Balance) }

	got, err := rig.svc.GetTransaction(context.Background(), actorFor(consumerAddr, ""), tx.TransactionID)
	if err != nil { t.Fatalf("GetTransaction: %v", err) }
	if got.Status != domain.TransactionStatusDisputed || got.DisputeID != dispute.DisputeID { t.Fatalf("transaction not linked to dispute: %+v", got) }

	if _, err := rig.svc.RespondDispute(context.Background(), actorFor(providerAddr, "resp-1"), RespondDisputeInput{DisputeID: dispute.DisputeID, EvidenceHash: "0xde"}); err != nil { t.Fatalf("RespondDispute: %v", err) }

	dispute, err = rig.svc.SubmitRuling(context.Background(), actorFor(judgeAddr, "rule-1"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: consumerAddr})
	if err != nil { t.Fatalf("SubmitRuling: %v", err) }
	if !dispute.Resolved || dispute.Winner != consumerAddr { t.Fatalf("dispute not resolved for winner: %+v", dispute) }

	consumer, _ = rig.repos.Agents.Get(context.Background(), consumerAddr)
	provider, _ = rig.repos.Agents.Get(context.Background(), providerAddr)
	operator, _ := rig.repos.Agents.Get(context.Background(), operatorAddr)
	// winner: both stakes back plus the full payment refund
	if consumer.Balance != 750_000+400_000+1_000_000 { t.Fatalf("winner balance wrong: %d", consumer.Balance) }
	if provider.Balance != 800_000 { t.Fatalf("loser balance wrong: %d", provider.Balance) }
	if operator.Balance != 50_000 { t.Fatalf("judge fee not paid out: %d", operator.Balance) }
	if provider.LossTier != 1 || provider.Stats.DisputesLost != 1 { t.Fatalf("loser record wrong: tier=%d stats=%+v", provider.LossTier, provider.Stats) }
	if consumer.Stats.DisputesWon != 1 { t.Fatalf("winner stats wrong: %+v", consumer.Stats) }

	if got := rig.totalHeld(t, consumerAddr, providerAddr, operatorAddr); got != 3_000_000 { t.Fatalf("value not conserved, total=%d", got) }
}

func TestDisputeProviderWinsReleasesPayout(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	dispute, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-2"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 100_000, EvidenceHash: "0xpe"})
	if err != nil { t.Fatalf("FileDispute: %v", err) }
	if _, err := rig.svc.SubmitRuling(context.Background(), actorFor(judgeAddr, "rule-2"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: providerAddr}); err != nil { t.Fatalf("SubmitRuling: %v", err) }
	provider, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	operator, _ := rig.repos.Agents.Get(context.Background(), operatorAddr)
	// both stakes plus payment minus protocol fee
	if provider.Balance != 900_000+200_000+990_000 { t.Fatalf("provider payout wrong: %d", provider.Balance) }
	if operator.Balance != 50_000+10_000 { t.Fatalf("operator take wrong: %d", operator.Balance) }
	consumer, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
	if consumer.LossTier != 1 { t.Fatalf("consumer loss not recorded: tier=%d", consumer.LossTier) }
	if got := rig.totalHeld(t, consumerAddr, providerAddr, operatorAddr); got != 3_000_000 { t.Fatalf("value not conserved, total=%d", got) }
}

func TestJudgeFeeEscalatesWithLosses(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 1_000_000)
	for losses, want := range map[uint8]uint64{0: 50_000, 1: 100_000, 2: 200_000, 3: 200_000} {
		agent, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
		agent.LossTier = losses
		if err := rig.repos.Agents.Upsert(context.Background(), agent); err != nil { t.Fatalf("Upsert: %v", err) }
		fee, _, err := rig.svc.JudgeFeeFor(context.Background(), actorFor(consumerAddr, ""), consumerAddr)
		if err != nil { t.Fatalf("JudgeFeeFor: %v", err) }
		if fee != want { t.Fatalf("losses=%d want fee %d got %d", losses, want, fee) }
	}
}

func TestRulingOnlyOnceAndOnlyByJudge(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	dispute, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-3"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 100_000, EvidenceHash: "0xpe"})
	if err != nil { t.Fatalf("FileDispute: %v", err) }

	_, err = rig.svc.SubmitRuling(context.Background(), actorFor(providerAddr, "rule-bad"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: providerAddr})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("non-judge ruling must be forbidden, got %v", err) }

	if _, err := rig.svc.SubmitRuling(context.Background(), actorFor(judgeAddr, "rule-3"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: consumerAddr}); err != nil { t.Fatalf("SubmitRuling: %v", err) }
	consumerAfter, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
	providerAfter, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	operatorAfter, _ := rig.repos.Agents.Get(context.Background(), operatorAddr)

	_, err = rig.svc.SubmitRuling(context.Background(), actorFor(judgeAddr, "rule-4"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: providerAddr})
	if !errors.Is(err, domain.ErrAlreadyResolved) { t.Fatalf("second ruling must fail, got %v", err) }

	consumer, _ := rig.repos.Agents.Get(context.Background(), consumerAddr)
	provider, _ := rig.repos.Agents.Get(context.Background(), providerAddr)
	operator, _ := rig.repos.Agents.Get(context.Background(), operatorAddr)
	if consumer.Balance != consumerAfter.Balance || provider.Balance != providerAfter.Balance || operator.Balance != operatorAfter.Balance {
		t.Fatalf("rejected replay moved money: consumer %d->%d provider %d->%d operator %d->%d",
			consumerAfter.Balance, consumer.Balance, providerAfter.Balance, provider.Balance, operatorAfter.Balance, operator.Balance)
	}
}

func TestRulingRejectsNonParty(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	dispute, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-4"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 100_000, EvidenceHash: "0xpe"})
	if err != nil { t.Fatalf("FileDispute: %v", err) }
	_, err = rig.svc.SubmitRuling(context.Background(), actorFor(judgeAddr, "rule-5"), SubmitRulingInput{DisputeID: dispute.DisputeID, Winner: operatorAddr})
	if !errors.Is(err, domain.ErrInvalidInput) { t.Fatalf("winner must be a party, got %v", err) }
}

func TestDefendantRespondsOnce(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	dispute, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-5"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 100_000, EvidenceHash: "0xpe"})
	if err != nil { t.Fatalf("FileDispute: %v", err) }
	_, err = rig.svc.RespondDispute(context.Background(), actorFor(consumerAddr, "resp-bad"), RespondDisputeInput{DisputeID: dispute.DisputeID, EvidenceHash: "0xde"})
	if !errors.Is(err, domain.ErrForbidden) { t.Fatalf("plaintiff cannot respond, got %v", err) }
	if _, err := rig.svc.RespondDispute(context.Background(), actorFor(providerAddr, "resp-2"), RespondDisputeInput{DisputeID: dispute.DisputeID, EvidenceHash: "0xde"}); err != nil { t.Fatalf("RespondDispute: %v", err) }
	_, err = rig.svc.RespondDispute(context.Background(), actorFor(providerAddr, "resp-3"), RespondDisputeInput{DisputeID: dispute.DisputeID, EvidenceHash: "0xde2"})
	if !errors.Is(err, domain.ErrAlreadyResponded) { t.Fatalf("second response must fail, got %v", err) }
}

func TestDisputeRequiresDefendantStakeCoverage(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	_, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-6"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 1_000_001, EvidenceHash: "0xpe"})
	if !errors.Is(err, domain.ErrInsufficientBalance) { t.Fatalf("expected ErrInsufficientBalance, got %v", err) }
}

func TestEvidenceCommitAndLookup(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, domain.DefaultMinDeposit)
	rig.registerAgent(t, providerAddr, domain.DefaultMinDeposit)
	first, err := rig.svc.CommitEvidence(context.Background(), actorFor(consumerAddr, "ev-1"), CommitEvidenceInput{InteractionKey: "tx-42", EvidenceHash: "0xaaa"})
	if err != nil { t.Fatalf("CommitEvidence: %v", err) }
	second, err := rig.svc.CommitEvidence(context.Background(), actorFor(providerAddr, "ev-2"), CommitEvidenceInput{InteractionKey: "tx-42", EvidenceHash: "0xbbb"})
	if err != nil { t.Fatalf("CommitEvidence: %v", err) }
	if first.Key == second.Key { t.Fatalf("distinct committers must not collide") }
	got, err := rig.svc.GetEvidence(context.Background(), actorFor(consumerAddr, ""), "tx-42", consumerAddr)
	if err != nil { t.Fatalf("GetEvidence: %v", err) }
	if got.EvidenceHash != "0xaaa" { t.Fatalf("wrong commitment returned: %+v", got) }

	// re-commit overwrites
	if _, err := rig.svc.CommitEvidence(context.Background(), actorFor(consumerAddr, "ev-3"), CommitEvidenceInput{InteractionKey: "tx-42", EvidenceHash: "0xccc"}); err != nil { t.Fatalf("CommitEvidence overwrite: %v", err) }
	got, _ = rig.svc.GetEvidence(context.Background(), actorFor(consumerAddr, ""), "tx-42", consumerAddr)
	if got.EvidenceHash != "0xccc" { t.Fatalf("overwrite not applied: %+v", got) }
}

func TestStatusCounters(t *testing.T) {
	rig := newTestRig(t)
	tx := fulfillTransactionForDispute(t, rig)
	if _, err := rig.svc.FileDispute(context.Background(), actorFor(consumerAddr, "disp-7"), FileDisputeInput{TransactionID: tx.TransactionID, Stake: 100_000, EvidenceHash: "0xpe"}); err != nil { t.Fatalf("FileDispute: %v", err) }
	st, err := rig.svc.Status(context.Background(), actorFor(consumerAddr, ""))
	if err != nil { t.Fatalf("Status: %v", err) }
	if st.ServiceCount != 1 || st.TransactionCount != 1 || st.DisputeCount != 1 { t.Fatalf("counters wrong: %+v", st) }
	if st.Operator != operatorAddr { t.Fatalf("operator wrong: %s", st.Operator) }
}

func TestHandleCanonicalEvent(t *testing.T) {
	rig := newTestRig(t)
	envelope := contracts.EventEnvelope{
		EventID:       "evt-1",
		EventType:     "transaction.completed",
		OccurredAt:    rig.now,
		SourceService: "other-service",
		TraceID:       "trace-1",
		SchemaVersion: "v1",
		Data:          []byte(`{}`),
	}
	err := rig.svc.HandleCanonicalEvent(context.Background(), envelope)
	if !errors.Is(err, domain.ErrUnsupportedEventType) { t.Fatalf("ledger subscribes to nothing, got %v", err) }

	envelope.EventID = ""
	if err := rig.svc.HandleCanonicalEvent(context.Background(), envelope); !errors.Is(err, domain.ErrInvalidEnvelope) { t.Fatalf("bad envelope must be rejected, got %v", err) }
}

func TestReputationFailuresDoNotBlockSettlement(t *testing.T) {
	rig := newTestRig(t)
	rig.registerAgent(t, consumerAddr, 2_000_000)
	rig.registerAgent(t, providerAddr, 1_000_000)
	rig.reputation.Fail(errors.New("registry down"))
	tx := rig.listServiceAndRequest(t, 1_000_000, 0)
	tx, err := rig.svc.FulfillTransaction(context.Background(), actorFor(providerAddr, "ful-r"), FulfillTransactionInput{TransactionID: tx.TransactionID, ResponseHash: "0xresp"})
	if err != nil { t.Fatalf("Fulfill: %v", err) }
	if _, err := rig.svc.ConfirmTransaction(context.Background(), actorFor(consumerAddr, "conf-r"), ConfirmTransactionInput{TransactionID: tx.TransactionID}); err != nil { t.Fatalf("settlement must not depend on reputation delivery: %v", err) }
}
