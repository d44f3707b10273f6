// Package memory holds an in-memory mirror used by tests and local runs
// without a configured spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"uscite/internal/core"
)

type SummaryRow struct {
	MonthKey core.MonthKey
	Total    core.Money
	SentAt   time.Time
}

type Store struct {
	mu        sync.Mutex
	items     []core.Expense
	summaries []SummaryRow
}

func New() *Store {
	return &Store{}
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Delete removes the mirrored expense by ID. Unknown IDs are a no-op: the
// row may never have been mirrored in the first place.
func (s *Store) Delete(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == e.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// AppendSummary records a dispatched summary row.
func (s *Store) AppendSummary(_ context.Context, mk core.MonthKey, total core.Money, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, SummaryRow{MonthKey: mk, Total: total, SentAt: sentAt})
	return nil
}

// ListIDs returns the IDs of every mirrored expense.
func (s *Store) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for _, item := range s.items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// Items returns a copy of the mirrored expenses.
func (s *Store) Items() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.items))
	copy(out, s.items)
	return out
}

// Summaries returns a copy of the mirrored summary rows.
func (s *Store) Summaries() []SummaryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SummaryRow, len(s.summaries))
	copy(out, s.summaries)
	return out
}
