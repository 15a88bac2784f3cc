package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kudi/internal/mutation"
	"kudi/internal/remote"
)

func apply(t *testing.T, s *Store, kind mutation.Kind, payload mutation.Payload) {
	t.Helper()
	rec, err := mutation.Build(kind, "u1", payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Apply(context.Background(), rec); err != nil {
		t.Fatalf("apply %s: %v", kind, err)
	}
}

func TestOfflineApplyFailsWithUnavailable(t *testing.T) {
	s := New()
	s.SetOffline(true)

	rec, err := mutation.Build(mutation.KindUpsertProfile, "u1", &mutation.ProfileRow{ID: "p1", UserID: "u1", DisplayName: "Ama"})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Apply(context.Background(), rec)
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if s.Calls() != 1 {
		t.Fatalf("outage attempts should be counted, got %d", s.Calls())
	}
}

func TestUpsertIsIdempotentByKey(t *testing.T) {
	s := New()
	row := &mutation.CategoryRow{ID: "cat-1", UserID: "u1", Name: "Food", LimitPesewas: 100}
	apply(t, s, mutation.KindUpsertCategory, row)
	apply(t, s, mutation.KindUpsertCategory, row)

	cat, ok := s.Category("cat-1")
	if !ok || cat.LimitPesewas != 100 {
		t.Fatal("replayed upsert should leave a single keyed row")
	}
}

func TestBudgetResetScopesToCycleAndUser(t *testing.T) {
	s := New()
	apply(t, s, mutation.KindInsertTransaction, &mutation.TransactionRow{
		ID: "tx-1", UserID: "u1", CategoryID: "c", CycleID: "cyc-1",
		Description: "x", AmountPesewas: 100, OccurredAt: time.Now(),
	})
	apply(t, s, mutation.KindInsertTransaction, &mutation.TransactionRow{
		ID: "tx-2", UserID: "u1", CategoryID: "c", CycleID: "cyc-2",
		Description: "y", AmountPesewas: 200, OccurredAt: time.Now(),
	})

	apply(t, s, mutation.KindResetBudget, &mutation.BudgetReset{
		ID: "r-1", UserID: "u1", CycleID: "cyc-1", ResetAt: time.Now(),
	})

	if _, ok := s.Transaction("tx-1"); ok {
		t.Fatal("reset should drop the cycle's transactions")
	}
	if _, ok := s.Transaction("tx-2"); !ok {
		t.Fatal("reset must not touch other cycles")
	}
}
