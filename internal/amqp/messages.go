package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds carried in the AMQP message Type property.
const (
	TypeExpenseSync       = "expense.sync"
	TypeExpenseDelete     = "expense.delete"
	TypeSummaryDispatched = "summary.dispatched"
)

// ExpenseSyncMessage asks the mirror worker to copy one expense to the
// sheet. It carries only the ID; the worker re-reads the expense from the
// ledger store.
type ExpenseSyncMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseSyncMessage(id string) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{ID: id, Timestamp: time.Now()}
}

func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExpenseDeleteMessage carries enough of the deleted expense for the worker
// to locate the mirrored row after the entry is gone from the ledger.
type ExpenseDeleteMessage struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	AmountCents int64     `json:"amount_cents"`
	OccurredAt  time.Time `json:"occurred_at"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *ExpenseDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseDeleteMessageFromJSON(data []byte) (*ExpenseDeleteMessage, error) {
	var msg ExpenseDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SummaryDispatchedMessage records a confirmed monthly summary dispatch for
// mirroring to the summaries sheet.
type SummaryDispatchedMessage struct {
	MonthKey   string    `json:"month_key"`
	TotalCents int64     `json:"total_cents"`
	SentAt     time.Time `json:"sent_at"`
}

func (m *SummaryDispatchedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SummaryDispatchedMessageFromJSON(data []byte) (*SummaryDispatchedMessage, error) {
	var msg SummaryDispatchedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
