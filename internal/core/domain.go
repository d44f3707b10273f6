package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	Money struct {
		Cents int64
	}

	// Expense is a single recorded outlay. Expenses are immutable after
	// creation; there is no edit operation, only add and delete.
	Expense struct {
		ID         string
		Amount     Money
		Reason     string
		Notes      string
		OccurredAt time.Time
	}

	// Ledger is the full collection of recorded expenses, newest first by
	// convention. Order carries no meaning for aggregation.
	Ledger []Expense
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyReason   = errors.New("empty reason")
	ErrEmptyID       = errors.New("empty expense id")
	ErrZeroTime      = errors.New("zero occurrence time")
)

// NewExpense assembles a validated expense with a fresh opaque ID.
func NewExpense(amount Money, reason, notes string, occurredAt time.Time) (Expense, error) {
	e := Expense{
		ID:         uuid.NewString(),
		Amount:     amount,
		Reason:     strings.TrimSpace(reason),
		Notes:      strings.TrimSpace(notes),
		OccurredAt: occurredAt,
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Reason)) == 0 {
		return ErrEmptyReason
	}
	if len(e.Reason) > 200 {
		return errors.New("reason too long (max 200 characters)")
	}
	if e.OccurredAt.IsZero() {
		return ErrZeroTime
	}
	return nil
}
