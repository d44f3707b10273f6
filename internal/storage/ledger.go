package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uscite/internal/core"
	applog "uscite/internal/log"
)

// ErrNotDurable marks write failures: the in-memory state stays usable for
// the session but the change is not guaranteed persisted.
var ErrNotDurable = errors.New("changes not durably saved")

// LedgerStore persists the full ledger as one serialized payload under the
// configured ledger key, and the rollover marker under the marker key.
// Callers always pass the complete intended ledger; there are no merge
// semantics.
type LedgerStore struct {
	kv        KV
	ledgerKey string
	markerKey string
	logger    *applog.Logger
}

func NewLedgerStore(kv KV, ledgerKey, markerKey string, logger *applog.Logger) *LedgerStore {
	return &LedgerStore{
		kv:        kv,
		ledgerKey: ledgerKey,
		markerKey: markerKey,
		logger:    logger.WithComponent(applog.ComponentStorage),
	}
}

// storedExpense is the persisted wire shape of an expense.
type storedExpense struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Notes       string    `json:"notes,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Load returns the persisted ledger. A missing key or a malformed payload
// yields an empty ledger, never an error: malformed data is logged and
// treated as an empty dataset. Individual invalid entries are excluded and
// flagged rather than silently coerced.
func (s *LedgerStore) Load(ctx context.Context) (core.Ledger, error) {
	payload, ok, err := s.kv.Get(ctx, s.ledgerKey)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !ok || payload == "" {
		return core.Ledger{}, nil
	}

	var stored []storedExpense
	if err := json.Unmarshal([]byte(payload), &stored); err != nil {
		s.logger.WarnContext(ctx, "Malformed ledger payload, treating as empty",
			applog.FieldStorageKey, s.ledgerKey,
			applog.FieldError, err)
		return core.Ledger{}, nil
	}

	ledger := make(core.Ledger, 0, len(stored))
	for _, se := range stored {
		e := core.Expense{
			ID:         se.ID,
			Amount:     core.Money{Cents: se.AmountCents},
			Reason:     se.Reason,
			Notes:      se.Notes,
			OccurredAt: se.OccurredAt,
		}
		if err := e.Validate(); err != nil {
			s.logger.WarnContext(ctx, "Skipping invalid stored expense",
				applog.FieldExpenseID, se.ID,
				applog.FieldError, err)
			continue
		}
		ledger = append(ledger, e)
	}
	return ledger, nil
}

// Save overwrites the persisted ledger with the complete given state.
func (s *LedgerStore) Save(ctx context.Context, ledger core.Ledger) error {
	stored := make([]storedExpense, len(ledger))
	for i, e := range ledger {
		stored[i] = storedExpense{
			ID:          e.ID,
			AmountCents: e.Amount.Cents,
			Reason:      e.Reason,
			Notes:       e.Notes,
			OccurredAt:  e.OccurredAt,
		}
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := s.kv.Set(ctx, s.ledgerKey, string(payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDurable, err)
	}
	return nil
}

// Marker returns the month of the last confirmed dispatch, or absent when no
// summary was ever sent. A malformed stored marker counts as absent.
func (s *LedgerStore) Marker(ctx context.Context) (core.MonthKey, bool, error) {
	value, ok, err := s.kv.Get(ctx, s.markerKey)
	if err != nil {
		return "", false, fmt.Errorf("load marker: %w", err)
	}
	if !ok || value == "" {
		return "", false, nil
	}
	mk, err := core.ParseMonthKey(value)
	if err != nil {
		s.logger.WarnContext(ctx, "Malformed rollover marker, treating as absent",
			applog.FieldStorageKey, s.markerKey,
			applog.FieldMarker, value)
		return "", false, nil
	}
	return mk, true, nil
}

// SetMarker overwrites the rollover marker.
func (s *LedgerStore) SetMarker(ctx context.Context, mk core.MonthKey) error {
	if err := mk.Validate(); err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	if err := s.kv.Set(ctx, s.markerKey, mk.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDurable, err)
	}
	return nil
}
