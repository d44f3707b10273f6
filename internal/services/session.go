// Package services orchestrates user intents over the ledger store, the
// rollover detector and the summary dispatcher.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"uscite/internal/amqp"
	"uscite/internal/core"
	"uscite/internal/dispatch"
	applog "uscite/internal/log"
	"uscite/internal/rollover"
	"uscite/internal/storage"
)

var (
	ErrConfirmationRequired = errors.New("delete requires prior confirmation")
	ErrExpenseNotFound      = errors.New("expense not found")
)

// monthWindow is how many completed months back the selector offers; one
// leading month is always included.
const monthWindow = 12

// EventPublisher mirrors ledger mutations and dispatched summaries to the
// worker queue. Best-effort: failures are logged, never surfaced.
type EventPublisher interface {
	PublishExpenseSync(ctx context.Context, id string) error
	PublishExpenseDelete(ctx context.Context, msg *amqp.ExpenseDeleteMessage) error
	PublishSummaryDispatched(ctx context.Context, msg *amqp.SummaryDispatchedMessage) error
}

// Session holds the transient state of one interactive session: the working
// copy of the ledger, the selected month, and the reminder flag. It is the
// only component that touches store, detector and dispatcher directly.
type Session struct {
	mu         sync.Mutex
	store      *storage.LedgerStore
	dispatcher *dispatch.Dispatcher
	publisher  EventPublisher
	logger     *applog.Logger
	now        func() time.Time

	ledger          core.Ledger
	selected        core.MonthKey
	reminderVisible bool
}

// Params collects the session dependencies. Publisher may be nil when no
// queue is configured; Now defaults to time.Now.
type Params struct {
	Store      *storage.LedgerStore
	Dispatcher *dispatch.Dispatcher
	Publisher  EventPublisher
	Logger     *applog.Logger
	Now        func() time.Time
}

// NewSession loads the persisted ledger, evaluates the rollover rule once,
// and defaults the selected month to the current one.
func NewSession(ctx context.Context, p Params) (*Session, error) {
	if p.Now == nil {
		p.Now = time.Now
	}

	s := &Session{
		store:      p.Store,
		dispatcher: p.Dispatcher,
		publisher:  p.Publisher,
		logger:     p.Logger.WithComponent(applog.ComponentSession),
		now:        p.Now,
	}

	ledger, err := p.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	s.ledger = ledger

	marker, hasMarker, err := p.Store.Marker(ctx)
	if err != nil {
		return nil, fmt.Errorf("load marker: %w", err)
	}

	now := s.now()
	state := rollover.Detect(marker, hasMarker, now)
	s.reminderVisible = state == rollover.ReminderPending
	s.selected = core.MonthKeyOf(now)

	s.logger.InfoContext(ctx, "Session started",
		"entries", len(ledger),
		applog.FieldMarker, marker.String(),
		"reminder", string(state))
	return s, nil
}

// AddExpense validates and records a new expense dated now. On a persistence
// failure the expense stays in the in-memory working copy and the error
// (storage.ErrNotDurable) is surfaced so the caller can warn the user.
func (s *Session) AddExpense(ctx context.Context, amount, reason, notes string) (core.Expense, error) {
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Expense{}, err
	}
	e, err := core.NewExpense(core.Money{Cents: cents}, reason, notes, s.now())
	if err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(core.Ledger{e}, s.ledger...)
	if err := s.store.Save(ctx, s.ledger); err != nil {
		s.logger.ErrorContext(ctx, "Expense kept in memory only",
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
		return e, err
	}

	s.publishSync(ctx, e.ID)
	s.logger.InfoContext(ctx, "Expense added",
		applog.FieldExpenseID, e.ID,
		applog.FieldReason, e.Reason,
		applog.FieldAmountCents, e.Amount.Cents)
	return e, nil
}

// RemoveExpense deletes an expense. The caller supplies the confirmation:
// without it nothing changes.
func (s *Session) RemoveExpense(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.ledger {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrExpenseNotFound
	}

	removed := s.ledger[idx]
	next := make(core.Ledger, 0, len(s.ledger)-1)
	next = append(next, s.ledger[:idx]...)
	next = append(next, s.ledger[idx+1:]...)
	s.ledger = next

	if err := s.store.Save(ctx, s.ledger); err != nil {
		s.logger.ErrorContext(ctx, "Delete kept in memory only",
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		return err
	}

	s.publishDelete(ctx, removed)
	s.logger.InfoContext(ctx, "Expense removed", applog.FieldExpenseID, id)
	return nil
}

// SelectMonth changes the report month; any valid key is browsable.
func (s *Session) SelectMonth(mk core.MonthKey) error {
	if err := mk.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = mk
	s.mu.Unlock()
	return nil
}

// DismissReminder hides the reminder for this session only. The marker is
// untouched, so the reminder reappears next session until a send confirms.
func (s *Session) DismissReminder() {
	s.mu.Lock()
	s.reminderVisible = false
	s.mu.Unlock()
}

// ConfirmSendReminder dispatches the summary the reminder asked for. When no
// override is given the target defaults to the most recently completed
// month; multi-month backlogs are resolved by the caller picking a key.
func (s *Session) ConfirmSendReminder(ctx context.Context, override *core.MonthKey) error {
	current := core.MonthKeyOf(s.now())
	target := current.Prev()
	if override != nil {
		if err := override.Validate(); err != nil {
			return err
		}
		target = *override
	}
	return s.dispatchSummary(ctx, target, current)
}

// SendSummaryForSelectedMonth dispatches the summary of the month currently
// selected in the report view.
func (s *Session) SendSummaryForSelectedMonth(ctx context.Context) error {
	s.mu.Lock()
	target := s.selected
	s.mu.Unlock()
	return s.dispatchSummary(ctx, target, core.MonthKeyOf(s.now()))
}

func (s *Session) dispatchSummary(ctx context.Context, target, current core.MonthKey) error {
	s.mu.Lock()
	total := core.TotalForMonth(s.ledger, target)
	s.mu.Unlock()

	if err := s.dispatcher.Dispatch(ctx, target, total, current); err != nil {
		return err
	}

	s.mu.Lock()
	s.reminderVisible = false
	s.mu.Unlock()

	s.publishSummary(ctx, target, total)
	return nil
}

// Snapshot is the read surface for the view layer. Aggregates are recomputed
// on every call; the dataset is small and this path is not performance
// sensitive.
type Snapshot struct {
	CurrentMonth    core.MonthKey
	SelectedMonth   core.MonthKey
	Entries         core.Ledger
	Total           core.Money
	ReminderVisible bool
	ReminderTarget  core.MonthKey
	MonthOptions    []core.MonthKey
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := core.MonthKeyOf(s.now())
	entries := core.SortedByOccurredDesc(core.EntriesForMonth(s.ledger, s.selected))

	return Snapshot{
		CurrentMonth:    current,
		SelectedMonth:   s.selected,
		Entries:         entries,
		Total:           core.TotalForMonth(s.ledger, s.selected),
		ReminderVisible: s.reminderVisible,
		ReminderTarget:  current.Prev(),
		MonthOptions:    monthOptions(current, s.selected),
	}
}

// monthOptions lists the selectable months, newest first: one leading month,
// the current one, a trailing window of completed months, and the selected
// month if it falls outside.
func monthOptions(current, selected core.MonthKey) []core.MonthKey {
	options := make([]core.MonthKey, 0, monthWindow+3)
	mk := current.Next()
	for i := 0; i < monthWindow+2; i++ {
		options = append(options, mk)
		mk = mk.Prev()
	}

	for _, mk := range options {
		if mk == selected {
			return options
		}
	}
	// Selected outside the window: keep descending order.
	out := make([]core.MonthKey, 0, len(options)+1)
	inserted := false
	for _, mk := range options {
		if !inserted && selected > mk {
			out = append(out, selected)
			inserted = true
		}
		out = append(out, mk)
	}
	if !inserted {
		out = append(out, selected)
	}
	return out
}

func (s *Session) publishSync(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseSync(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldExpenseID, id,
			applog.FieldError, err)
	}
}

func (s *Session) publishDelete(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		return
	}
	msg := &amqp.ExpenseDeleteMessage{
		ID:          e.ID,
		Reason:      e.Reason,
		AmountCents: e.Amount.Cents,
		OccurredAt:  e.OccurredAt,
	}
	if err := s.publisher.PublishExpenseDelete(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish delete message",
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
}

func (s *Session) publishSummary(ctx context.Context, mk core.MonthKey, total core.Money) {
	if s.publisher == nil {
		return
	}
	msg := &amqp.SummaryDispatchedMessage{
		MonthKey:   mk.String(),
		TotalCents: total.Cents,
		SentAt:     s.now(),
	}
	if err := s.publisher.PublishSummaryDispatched(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish summary message",
			applog.FieldMonthKey, mk.String(),
			applog.FieldError, err)
	}
}
