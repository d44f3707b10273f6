package amqp

import (
	"context"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestRouteDeliverySync(t *testing.T) {
	body, err := NewExpenseSyncMessage("abc-123").ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got string
	handlers := Handlers{
		OnSync: func(_ context.Context, msg *ExpenseSyncMessage) error {
			got = msg.ID
			return nil
		},
	}

	handle, err := routeDelivery(amqp091.Delivery{Type: TypeExpenseSync, Body: body}, handlers)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if handle == nil {
		t.Fatalf("expected bound handler")
	}
	if err := handle(context.Background()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got != "abc-123" {
		t.Fatalf("expected id abc-123, got %q", got)
	}
}

func TestRouteDeliveryDelete(t *testing.T) {
	msg := &ExpenseDeleteMessage{
		ID:          "abc-123",
		Reason:      "groceries",
		AmountCents: 1234,
		OccurredAt:  time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC),
	}
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got *ExpenseDeleteMessage
	handlers := Handlers{
		OnDelete: func(_ context.Context, m *ExpenseDeleteMessage) error {
			got = m
			return nil
		},
	}

	handle, err := routeDelivery(amqp091.Delivery{Type: TypeExpenseDelete, Body: body}, handlers)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := handle(context.Background()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.ID != "abc-123" || got.AmountCents != 1234 || got.Reason != "groceries" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestRouteDeliverySummary(t *testing.T) {
	msg := &SummaryDispatchedMessage{
		MonthKey:   "2025-08",
		TotalCents: 12050,
		SentAt:     time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got *SummaryDispatchedMessage
	handlers := Handlers{
		OnSummary: func(_ context.Context, m *SummaryDispatchedMessage) error {
			got = m
			return nil
		},
	}

	handle, err := routeDelivery(amqp091.Delivery{Type: TypeSummaryDispatched, Body: body}, handlers)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := handle(context.Background()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got.MonthKey != "2025-08" || got.TotalCents != 12050 {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestRouteDeliveryUnknownType(t *testing.T) {
	if _, err := routeDelivery(amqp091.Delivery{Type: "bogus"}, Handlers{}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestRouteDeliveryBadPayload(t *testing.T) {
	_, err := routeDelivery(amqp091.Delivery{Type: TypeExpenseSync, Body: []byte("{bad")}, Handlers{
		OnSync: func(context.Context, *ExpenseSyncMessage) error { return nil },
	})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRouteDeliveryMissingHandler(t *testing.T) {
	body, _ := NewExpenseSyncMessage("x").ToJSON()
	handle, err := routeDelivery(amqp091.Delivery{Type: TypeExpenseSync, Body: body}, Handlers{})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if handle != nil {
		t.Fatalf("expected nil handler when none registered")
	}
}
