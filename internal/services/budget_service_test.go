package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kudi/internal/amqp"
	"kudi/internal/core"
	"kudi/internal/project"
	"kudi/internal/queue"
	"kudi/internal/remote/memory"
	"kudi/internal/state"
	"kudi/internal/syncer"
)

func newTestService(t *testing.T) (*BudgetService, *queue.Store, *memory.Store, *syncer.Executor) {
	return newTestServiceWith(t, nil)
}

func newTestServiceWith(t *testing.T, publisher TriggerPublisher) (*BudgetService, *queue.Store, *memory.Store, *syncer.Executor) {
	t.Helper()
	store, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rem := memory.New()
	exec := syncer.New(store, rem, syncer.DefaultConfig())

	rebuild := func(userID string) (*core.BudgetState, error) {
		recs, err := store.List(context.Background(), userID)
		if err != nil {
			return nil, err
		}
		return project.Replay(nil, recs)
	}
	states := state.NewManager(100, time.Minute, rebuild)

	return NewBudgetService(store, states, exec, publisher), store, rem, exec
}

// waitForDepth polls until the user's queue drains; background flushes make
// exact completion timing nondeterministic.
func waitForDepth(t *testing.T, store *queue.Store, userID string, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		depth, err := store.Depth(context.Background(), userID)
		if err != nil {
			t.Fatal(err)
		}
		if depth == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	depth, _ := store.Depth(context.Background(), userID)
	t.Fatalf("queue depth never reached %d, still %d", want, depth)
}

func TestOfflineSpendThenSync(t *testing.T) {
	service, store, rem, exec := newTestService(t)
	ctx := context.Background()

	rem.SetOffline(true)

	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Food", Limit: core.Money{Pesewas: 100000},
	})
	if err != nil {
		t.Fatalf("upsert category: %v", err)
	}
	catID := catRec.Payload.PrimaryKey()

	// ₵50 spent while offline.
	txRec, err := service.RecordTransaction(ctx, core.Transaction{
		UserID: "ama", CategoryID: catID, Description: "waakye special",
		Amount: core.Money{Pesewas: 5000}, OccurredAt: core.NewDate(2026, 8, 30),
	})
	if err != nil {
		t.Fatalf("record transaction: %v", err)
	}

	// Optimistic state reflects the spend immediately.
	snap, err := service.Snapshot("ama")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Categories[catID].Spent.Pesewas != 5000 {
		t.Fatalf("optimistic spent wrong: %d", snap.Categories[catID].Spent.Pesewas)
	}

	// Nothing reached the remote while offline.
	if rem.TransactionCount() != 0 {
		t.Fatal("transaction leaked to the remote during outage")
	}

	// Connectivity returns; the queue drains.
	rem.SetOffline(false)
	if err := exec.FlushQueue(ctx, "ama"); err != nil && !errors.Is(err, syncer.ErrFlushInFlight) {
		t.Fatalf("flush: %v", err)
	}
	waitForDepth(t, store, "ama", 0)

	remoteTx, ok := rem.Transaction(txRec.Payload.PrimaryKey())
	if !ok {
		t.Fatal("transaction never reached the remote")
	}
	if remoteTx.AmountPesewas != 5000 || remoteTx.Description != "waakye special" {
		t.Fatal("remote transaction fields wrong")
	}
}

func TestTransactionRequiresKnownCategory(t *testing.T) {
	service, _, _, _ := newTestService(t)
	_, err := service.RecordTransaction(context.Background(), core.Transaction{
		UserID: "ama", CategoryID: "ghost", Description: "x",
		Amount: core.Money{Pesewas: 100}, OccurredAt: core.NewDate(2026, 8, 30),
	})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestTransactionAgainstQueuedCategory(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()

	// Category still waiting in the queue must already be spendable.
	rem.SetOffline(true)
	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Transport", Limit: core.Money{Pesewas: 20000},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = service.RecordTransaction(ctx, core.Transaction{
		UserID: "ama", CategoryID: catRec.Payload.PrimaryKey(), Description: "trotro",
		Amount: core.Money{Pesewas: 300}, OccurredAt: core.NewDate(2026, 8, 30),
	})
	if err != nil {
		t.Fatalf("queued category should be visible to new transactions: %v", err)
	}
}

func TestReallocateValidatesAgainstOptimisticState(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	fromRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Food", Limit: core.Money{Pesewas: 10000},
	})
	if err != nil {
		t.Fatal(err)
	}
	toRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Data", Limit: core.Money{Pesewas: 5000},
	})
	if err != nil {
		t.Fatal(err)
	}
	fromID := fromRec.Payload.PrimaryKey()
	toID := toRec.Payload.PrimaryKey()

	if _, err := service.Reallocate(ctx, "ama", "", fromID, toID, core.Money{Pesewas: 50000}); !errors.Is(err, ErrInsufficientLimit) {
		t.Fatalf("expected ErrInsufficientLimit, got %v", err)
	}
	if _, err := service.Reallocate(ctx, "ama", "", fromID, fromID, core.Money{Pesewas: 100}); !errors.Is(err, ErrSameCategory) {
		t.Fatalf("expected ErrSameCategory, got %v", err)
	}

	if _, err := service.Reallocate(ctx, "ama", "", fromID, toID, core.Money{Pesewas: 4000}); err != nil {
		t.Fatalf("valid reallocation rejected: %v", err)
	}
	snap, err := service.Snapshot("ama")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Categories[fromID].Limit.Pesewas != 6000 || snap.Categories[toID].Limit.Pesewas != 9000 {
		t.Fatal("reallocation not reflected in optimistic state")
	}
}

func TestResetBudgetRequiresKnownCycle(t *testing.T) {
	service, _, _, _ := newTestService(t)
	if _, err := service.ResetBudget(context.Background(), "ama", "ghost"); !errors.Is(err, ErrUnknownCycle) {
		t.Fatalf("expected ErrUnknownCycle, got %v", err)
	}
}

func TestDebtPaymentShrinksOptimisticBalance(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	debtRec, err := service.CreateDebt(ctx, core.Debt{
		UserID: "ama", Name: "susu loan", Principal: core.Money{Pesewas: 100000},
	})
	if err != nil {
		t.Fatal(err)
	}
	debtID := debtRec.Payload.PrimaryKey()

	if _, err := service.RecordDebtPayment(ctx, core.DebtPayment{
		UserID: "ama", DebtID: debtID, Amount: core.Money{Pesewas: 25000},
	}); err != nil {
		t.Fatal(err)
	}

	snap, err := service.Snapshot("ama")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Debts[debtID].Balance.Pesewas != 75000 {
		t.Fatalf("balance wrong: %d", snap.Debts[debtID].Balance.Pesewas)
	}
}

// recordingPublisher captures sync triggers without a broker.
type recordingPublisher struct {
	mu       sync.Mutex
	triggers []string
}

func (p *recordingPublisher) PublishSyncTrigger(_ context.Context, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers = append(p.triggers, userID+"/"+reason)
	return nil
}

func (p *recordingPublisher) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.triggers...)
}

func waitForTriggers(t *testing.T, pub *recordingPublisher, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := pub.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %d sync triggers, got %v", want, pub.snapshot())
	return nil
}

// With a broker configured the sync worker is the only drainer. If the API
// process also flushed, two passes over the same records could replay a stale
// upsert over a newer one, since the in-flight guard only covers one process.
func TestBrokerModeLeavesDrainingToWorker(t *testing.T) {
	pub := &recordingPublisher{}
	service, store, rem, exec := newTestServiceWith(t, pub)
	ctx := context.Background()

	// Remote is reachable, yet the enqueue must only publish a trigger.
	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Food", Limit: core.Money{Pesewas: 10000},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := waitForTriggers(t, pub, 1)
	if got[0] != "ama/"+amqp.ReasonMutationEnqueued {
		t.Fatalf("unexpected trigger %q", got[0])
	}
	if rem.Calls() != 0 {
		t.Fatalf("api process drained the queue itself: %d remote calls", rem.Calls())
	}
	if depth, _ := store.Depth(ctx, "ama"); depth != 1 {
		t.Fatalf("queue depth %d, want 1", depth)
	}

	// Manual flush defers to the worker too.
	if err := service.Flush(ctx, "ama"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got = waitForTriggers(t, pub, 2)
	if got[1] != "ama/"+amqp.ReasonManual {
		t.Fatalf("unexpected trigger %q", got[1])
	}
	if rem.Calls() != 0 {
		t.Fatal("manual flush drained in-process despite broker")
	}

	// The worker's executor is the single drainer.
	if err := exec.FlushQueue(ctx, "ama"); err != nil {
		t.Fatalf("worker flush: %v", err)
	}
	waitForDepth(t, store, "ama", 0)
	cat, ok := rem.Category(catRec.Payload.PrimaryKey())
	if !ok || cat.LimitPesewas != 10000 {
		t.Fatal("worker flush did not deliver the mutation")
	}
}

func TestStateRebuildsFromQueueAfterReset(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Food", Limit: core.Money{Pesewas: 100000},
	})
	if err != nil {
		t.Fatal(err)
	}
	catID := catRec.Payload.PrimaryKey()
	if _, err := service.RecordTransaction(ctx, core.Transaction{
		UserID: "ama", CategoryID: catID, Description: "spend",
		Amount: core.Money{Pesewas: 1234}, OccurredAt: core.NewDate(2026, 8, 30),
	}); err != nil {
		t.Fatal(err)
	}

	// Simulate an eviction or restart of the in-memory projection.
	service.ResetState("ama")

	snap, err := service.Snapshot("ama")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Categories[catID] == nil || snap.Categories[catID].Spent.Pesewas != 1234 {
		t.Fatal("rebuilt state lost the queued mutations")
	}
}
