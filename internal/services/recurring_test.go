package services

import (
	"context"
	"testing"
	"time"

	"kudi/internal/core"
)

func TestMaterializerCreatesDueTransaction(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Subscriptions", Limit: core.Money{Pesewas: 50000},
	})
	if err != nil {
		t.Fatal(err)
	}
	catID := catRec.Payload.PrimaryKey()

	reRec, err := service.CreateRecurringExpense(ctx, core.RecurringExpense{
		UserID: "ama", CategoryID: catID, Description: "streaming",
		Amount: core.Money{Pesewas: 3500}, Cadence: core.Monthly,
		StartDate: core.NewDate(2026, 1, 15),
	})
	if err != nil {
		t.Fatal(err)
	}
	reID := reRec.Payload.PrimaryKey()

	m := NewMaterializer(service)
	m.Track("ama")

	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	created, err := m.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 materialized transaction, got %d", created)
	}

	snap, err := service.Snapshot("ama")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Categories[catID].Spent.Pesewas != 3500 {
		t.Fatal("materialized transaction did not hit the category")
	}
	if !snap.RecurringExpenses[reID].LastAppliedAt.Equal(now) {
		t.Fatal("template LastAppliedAt not advanced")
	}

	// Same month again: nothing new.
	created, err = m.ProcessDue(ctx, now.AddDate(0, 0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("template applied twice in one month, created=%d", created)
	}
}

func TestMaterializerSkipsFutureStartDates(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "ama", Name: "Rent", Limit: core.Money{Pesewas: 200000},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := service.CreateRecurringExpense(ctx, core.RecurringExpense{
		UserID: "ama", CategoryID: catRec.Payload.PrimaryKey(), Description: "new flat",
		Amount: core.Money{Pesewas: 80000}, Cadence: core.Monthly,
		StartDate: core.NewDate(2027, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}

	m := NewMaterializer(service)
	m.Track("ama")

	created, err := m.ProcessDue(ctx, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("future template materialized early, created=%d", created)
	}
}

func TestMaterializerIgnoresUntrackedUsers(t *testing.T) {
	service, _, rem, _ := newTestService(t)
	ctx := context.Background()
	rem.SetOffline(true)

	catRec, err := service.UpsertCategory(ctx, core.Category{
		UserID: "kofi", Name: "Data", Limit: core.Money{Pesewas: 10000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.CreateRecurringExpense(ctx, core.RecurringExpense{
		UserID: "kofi", CategoryID: catRec.Payload.PrimaryKey(), Description: "bundle",
		Amount: core.Money{Pesewas: 2000}, Cadence: core.Daily,
		StartDate: core.NewDate(2026, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}

	m := NewMaterializer(service)
	// kofi is never tracked.
	created, err := m.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("untracked user materialized, created=%d", created)
	}
}
