package core

import (
	"errors"
	"testing"
	"time"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestNewExpense(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC)

	e, err := NewExpense(Money{Cents: 1234}, "  groceries ", " weekly run ", now)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if e.Reason != "groceries" || e.Notes != "weekly run" {
		t.Fatalf("expected trimmed fields, got %q / %q", e.Reason, e.Notes)
	}
	if !e.OccurredAt.Equal(now) {
		t.Fatalf("expected occurredAt %v, got %v", now, e.OccurredAt)
	}

	other, err := NewExpense(Money{Cents: 1}, "coffee", "", now)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if other.ID == e.ID {
		t.Fatalf("expected unique ids")
	}
}

func TestNewExpenseRejections(t *testing.T) {
	now := time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name   string
		amount Money
		reason string
		at     time.Time
		want   error
	}{
		{"zero amount", Money{Cents: 0}, "bus", now, ErrInvalidAmount},
		{"negative amount", Money{Cents: -5}, "bus", now, ErrInvalidAmount},
		{"empty reason", Money{Cents: 100}, "", now, ErrEmptyReason},
		{"blank reason", Money{Cents: 100}, "   ", now, ErrEmptyReason},
		{"zero time", Money{Cents: 100}, "bus", time.Time{}, ErrZeroTime},
	}
	for _, tc := range cases {
		_, err := NewExpense(tc.amount, tc.reason, "", tc.at)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestExpenseValidateMissingID(t *testing.T) {
	e := Expense{
		Amount:     Money{Cents: 100},
		Reason:     "bus",
		OccurredAt: time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC),
	}
	if err := e.Validate(); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}
}
