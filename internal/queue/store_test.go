package queue

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kudi/internal/mutation"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func buildRecord(t *testing.T, userID, txID string) *mutation.Record {
	t.Helper()
	rec, err := mutation.Build(mutation.KindInsertTransaction, userID, &mutation.TransactionRow{
		ID:            txID,
		UserID:        userID,
		CategoryID:    "cat-1",
		Description:   "kenkey",
		AmountPesewas: 500,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return rec
}

func TestEnqueueSurvivesReopen(t *testing.T) {
	store, dbPath := openTestStore(t)
	ctx := context.Background()

	rec := buildRecord(t, "u1", "tx-1")
	if err := store.Enqueue(ctx, rec); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	store.Close()

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recs, err := reopened.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("expected the enqueued record to survive reopen, got %d records", len(recs))
	}
	tx, ok := recs[0].Payload.(*mutation.TransactionRow)
	if !ok {
		t.Fatalf("payload decoded to %T", recs[0].Payload)
	}
	if tx.AmountPesewas != 500 || tx.Description != "kenkey" {
		t.Fatal("payload fields lost across reopen")
	}
}

func TestListPreservesEnqueueOrder(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	ids := []string{"tx-a", "tx-b", "tx-c"}
	for _, id := range ids {
		if err := store.Enqueue(ctx, buildRecord(t, "u1", id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	recs, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, id := range ids {
		tx := recs[i].Payload.(*mutation.TransactionRow)
		if tx.ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, tx.ID)
		}
	}
}

func TestListIsolatesUsers(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Enqueue(ctx, buildRecord(t, "ama", "tx-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, buildRecord(t, "kofi", "tx-2")); err != nil {
		t.Fatal(err)
	}

	recs, err := store.List(ctx, "ama")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].UserID != "ama" {
		t.Fatalf("expected only ama's record, got %d", len(recs))
	}
}

func TestUpdateWritesRetryMetadata(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := buildRecord(t, "u1", "tx-1")
	if err := store.Enqueue(ctx, rec); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	patch := RetryPatch{RetryCount: 3, LastAttemptAt: now, LastError: "remote store unavailable"}
	if err := store.Update(ctx, "u1", rec.ID, patch); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "u1", rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RetryCount != 3 || got.LastError != "remote store unavailable" {
		t.Fatalf("retry metadata not persisted: count=%d err=%q", got.RetryCount, got.LastError)
	}
	if got.LastAttemptAt == nil || !got.LastAttemptAt.Equal(now) {
		t.Fatalf("last attempt time not persisted: %v", got.LastAttemptAt)
	}
}

func TestUpdateMissingIDIsNoOp(t *testing.T) {
	store, _ := openTestStore(t)
	patch := RetryPatch{RetryCount: 1, LastAttemptAt: time.Now(), LastError: "x"}
	if err := store.Update(context.Background(), "u1", "absent", patch); err != nil {
		t.Fatalf("update on missing id should be a no-op, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := buildRecord(t, "u1", "tx-1")
	if err := store.Enqueue(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(ctx, "u1", rec.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "u1", rec.ID); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}

	if _, err := store.Get(ctx, "u1", rec.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after remove, got %v", err)
	}
}

func TestClearDropsOnlyOneUser(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Enqueue(ctx, buildRecord(t, "ama", "tx-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, buildRecord(t, "kofi", "tx-2")); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(ctx, "ama"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	amaDepth, _ := store.Depth(ctx, "ama")
	kofiDepth, _ := store.Depth(ctx, "kofi")
	if amaDepth != 0 || kofiDepth != 1 {
		t.Fatalf("clear should only touch one user: ama=%d kofi=%d", amaDepth, kofiDepth)
	}
}

func TestTotalDepthSpansUsers(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	recs := []*mutation.Record{
		buildRecord(t, "ama", "tx-1"),
		buildRecord(t, "ama", "tx-2"),
		buildRecord(t, "kofi", "tx-3"),
	}
	for _, rec := range recs {
		if err := store.Enqueue(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	total, err := store.TotalDepth(ctx)
	if err != nil {
		t.Fatalf("total depth: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total depth 3, got %d", total)
	}

	if err := store.Remove(ctx, "kofi", recs[2].ID); err != nil {
		t.Fatal(err)
	}
	total, err = store.TotalDepth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("expected total depth 2 after remove, got %d", total)
	}
}

func TestUsersWithPendingOrdersByOldest(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.Enqueue(ctx, buildRecord(t, "kofi", "tx-1")); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, buildRecord(t, "ama", "tx-2")); err != nil {
		t.Fatal(err)
	}

	users, err := store.UsersWithPending(ctx)
	if err != nil {
		t.Fatalf("users with pending: %v", err)
	}
	if len(users) != 2 || users[0] != "kofi" || users[1] != "ama" {
		t.Fatalf("expected [kofi ama], got %v", users)
	}
}

func TestEnqueueDuplicateIDFails(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	rec := buildRecord(t, "u1", "tx-1")
	if err := store.Enqueue(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue(ctx, rec); err == nil {
		t.Fatal("expected unique constraint violation for duplicate mutation id")
	}
}
