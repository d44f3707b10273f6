package worker

import (
	"context"
	"testing"
	"time"

	"uscite/internal/amqp"
	"uscite/internal/core"
	applog "uscite/internal/log"
	"uscite/internal/sheets/memory"
	"uscite/internal/storage"
)

func newWorker(t *testing.T) (*MirrorWorker, *storage.LedgerStore, *memory.Store) {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	store := storage.NewLedgerStore(storage.NewMemoryKV(), "ledger", "last_sent_month", logger)
	mirror := memory.New()
	return NewMirrorWorker(store, mirror, mirror, mirror, logger), store, mirror
}

func seedExpense(t *testing.T, store *storage.LedgerStore) core.Expense {
	t.Helper()
	e, err := core.NewExpense(core.Money{Cents: 1234}, "groceries", "weekly",
		time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build expense: %v", err)
	}
	if err := store.Save(context.Background(), core.Ledger{e}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return e
}

func TestHandleSyncMessage(t *testing.T) {
	w, store, mirror := newWorker(t)
	e := seedExpense(t, store)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseSyncMessage(e.ID)); err != nil {
		t.Fatalf("handle sync: %v", err)
	}

	items := mirror.Items()
	if len(items) != 1 || items[0].ID != e.ID {
		t.Fatalf("expected mirrored expense, got %+v", items)
	}
}

func TestHandleSyncMessageForGoneExpense(t *testing.T) {
	w, _, mirror := newWorker(t)

	// Deleted before the mirror caught up: acked, not retried.
	if err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseSyncMessage("gone")); err != nil {
		t.Fatalf("expected nil for missing expense, got %v", err)
	}
	if len(mirror.Items()) != 0 {
		t.Fatalf("nothing should be mirrored")
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	w, store, mirror := newWorker(t)
	e := seedExpense(t, store)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewExpenseSyncMessage(e.ID)); err != nil {
		t.Fatalf("handle sync: %v", err)
	}
	msg := &amqp.ExpenseDeleteMessage{
		ID:          e.ID,
		Reason:      e.Reason,
		AmountCents: e.Amount.Cents,
		OccurredAt:  e.OccurredAt,
	}
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle delete: %v", err)
	}
	if len(mirror.Items()) != 0 {
		t.Fatalf("expected mirrored row removed")
	}
}

func TestReconcileMirrorsMissedExpenses(t *testing.T) {
	w, store, mirror := newWorker(t)
	e := seedExpense(t, store)

	// Never synced: reconcile picks it up.
	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	items := mirror.Items()
	if len(items) != 1 || items[0].ID != e.ID {
		t.Fatalf("expected reconcile to mirror expense, got %+v", items)
	}

	// Already mirrored: a second pass must not duplicate the row.
	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(mirror.Items()) != 1 {
		t.Fatalf("reconcile duplicated mirrored row: %+v", mirror.Items())
	}
}

func TestHandleSummaryMessage(t *testing.T) {
	w, _, mirror := newWorker(t)

	msg := &amqp.SummaryDispatchedMessage{
		MonthKey:   "2025-08",
		TotalCents: 12050,
		SentAt:     time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := w.HandleSummaryMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle summary: %v", err)
	}
	rows := mirror.Summaries()
	if len(rows) != 1 || rows[0].MonthKey != "2025-08" || rows[0].Total.Cents != 12050 {
		t.Fatalf("unexpected summary rows %+v", rows)
	}

	// Malformed month keys are dropped, not retried.
	bad := &amqp.SummaryDispatchedMessage{MonthKey: "agosto"}
	if err := w.HandleSummaryMessage(context.Background(), bad); err != nil {
		t.Fatalf("expected nil for malformed key, got %v", err)
	}
	if len(mirror.Summaries()) != 1 {
		t.Fatalf("malformed summary must not be mirrored")
	}
}
