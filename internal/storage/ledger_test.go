package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"uscite/internal/core"
	applog "uscite/internal/log"
)

func testStore(t *testing.T) (*LedgerStore, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	logger := applog.New(applog.DefaultConfig())
	return NewLedgerStore(kv, "ledger", "last_sent_month", logger), kv
}

func testExpense(t *testing.T, cents int64, reason string, at time.Time) core.Expense {
	t.Helper()
	e, err := core.NewExpense(core.Money{Cents: cents}, reason, "", at)
	if err != nil {
		t.Fatalf("build expense: %v", err)
	}
	return e
}

func TestLoadEmptyStore(t *testing.T) {
	store, _ := testStore(t)
	ledger, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if len(ledger) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(ledger))
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()
	at := time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC)

	in := core.Ledger{
		testExpense(t, 1234, "groceries", at),
		testExpense(t, 500, "coffee", at.Add(time.Hour)),
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].ID != in[0].ID || out[0].Amount.Cents != 1234 || out[0].Reason != "groceries" {
		t.Fatalf("first entry mismatch: %+v", out[0])
	}
	if !out[1].OccurredAt.Equal(in[1].OccurredAt) {
		t.Fatalf("occurredAt mismatch: %v vs %v", out[1].OccurredAt, in[1].OccurredAt)
	}
}

func TestLoadMalformedPayloadIsEmpty(t *testing.T) {
	store, kv := testStore(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "ledger", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("malformed payload must not fail load, got %v", err)
	}
	if len(ledger) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(ledger))
	}
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	store, kv := testStore(t)
	ctx := context.Background()

	// Second entry has a non-positive amount and must be excluded.
	payload := `[
		{"id":"a","amount_cents":100,"reason":"ok","occurred_at":"2025-08-14T10:00:00Z"},
		{"id":"b","amount_cents":0,"reason":"bad","occurred_at":"2025-08-14T10:00:00Z"}
	]`
	if err := kv.Set(ctx, "ledger", payload); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ledger, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(ledger) != 1 || ledger[0].ID != "a" {
		t.Fatalf("expected only valid entry, got %+v", ledger)
	}
}

func TestMarkerAbsentThenSet(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	if _, ok, err := store.Marker(ctx); err != nil || ok {
		t.Fatalf("expected absent marker, got ok=%v err=%v", ok, err)
	}

	if err := store.SetMarker(ctx, "2025-09"); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	mk, ok, err := store.Marker(ctx)
	if err != nil || !ok {
		t.Fatalf("expected marker present, got ok=%v err=%v", ok, err)
	}
	if mk != "2025-09" {
		t.Fatalf("expected 2025-09, got %q", mk)
	}
}

func TestMalformedMarkerIsAbsent(t *testing.T) {
	store, kv := testStore(t)
	ctx := context.Background()

	if err := kv.Set(ctx, "last_sent_month", "agosto"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok, err := store.Marker(ctx); err != nil || ok {
		t.Fatalf("malformed marker should read as absent, got ok=%v err=%v", ok, err)
	}
}

func TestSetMarkerRejectsInvalidKey(t *testing.T) {
	store, _ := testStore(t)
	if err := store.SetMarker(context.Background(), "2025/09"); err == nil {
		t.Fatalf("expected error for invalid month key")
	}
}

type failingKV struct{ MemoryKV }

func (f *failingKV) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestSaveFailureIsNotDurable(t *testing.T) {
	logger := applog.New(applog.DefaultConfig())
	store := NewLedgerStore(&failingKV{}, "ledger", "last_sent_month", logger)

	err := store.Save(context.Background(), core.Ledger{})
	if !errors.Is(err, ErrNotDurable) {
		t.Fatalf("expected ErrNotDurable, got %v", err)
	}
	err = store.SetMarker(context.Background(), "2025-09")
	if !errors.Is(err, ErrNotDurable) {
		t.Fatalf("expected ErrNotDurable for marker, got %v", err)
	}
}
