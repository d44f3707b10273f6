package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	// Declare exchange
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Declare queue
	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Bind queue to exchange
	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, msgType string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Type:         msgType,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishExpenseSync publishes a mirror request for a newly added expense.
func (c *Client) PublishExpenseSync(ctx context.Context, id string) error {
	body, err := NewExpenseSyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeExpenseSync, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published expense sync message",
		"id", id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishExpenseDelete publishes a mirror-row removal for a deleted expense.
func (c *Client) PublishExpenseDelete(ctx context.Context, msg *ExpenseDeleteMessage) error {
	msg.Timestamp = time.Now()
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeExpenseDelete, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published expense delete message",
		"id", msg.ID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishSummaryDispatched publishes a record of a confirmed summary send.
func (c *Client) PublishSummaryDispatched(ctx context.Context, msg *SummaryDispatchedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, TypeSummaryDispatched, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published summary dispatched message",
		"month_key", msg.MonthKey,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Handlers routes consumed messages by kind. A nil handler drops its kind
// with an ack.
type Handlers struct {
	OnSync    func(ctx context.Context, msg *ExpenseSyncMessage) error
	OnDelete  func(ctx context.Context, msg *ExpenseDeleteMessage) error
	OnSummary func(ctx context.Context, msg *SummaryDispatchedMessage) error
}

// ConsumeMessages consumes from the queue with manual acks. Handler errors
// requeue the delivery; undecodable payloads are rejected without requeue.
func (c *Client) ConsumeMessages(ctx context.Context, handlers Handlers) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming mirror messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handlers)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handlers Handlers) {
	handle, err := routeDelivery(delivery, handlers)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to decode message",
			"type", delivery.Type,
			"error", err)
		delivery.Nack(false, false) // reject and don't requeue
		return
	}
	if handle == nil {
		slog.WarnContext(ctx, "No handler for message type", "type", delivery.Type)
		delivery.Nack(false, false)
		return
	}

	if err := handle(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"type", delivery.Type,
			"error", err)
		delivery.Nack(false, true) // reject and requeue
		return
	}

	delivery.Ack(false)
}

// routeDelivery decodes the payload for its kind and binds the matching
// handler. A decode failure is permanent; a missing handler yields nil.
func routeDelivery(delivery amqp091.Delivery, handlers Handlers) (func(context.Context) error, error) {
	switch delivery.Type {
	case TypeExpenseSync:
		msg, err := ExpenseSyncMessageFromJSON(delivery.Body)
		if err != nil {
			return nil, err
		}
		if handlers.OnSync == nil {
			return nil, nil
		}
		return func(ctx context.Context) error { return handlers.OnSync(ctx, msg) }, nil
	case TypeExpenseDelete:
		msg, err := ExpenseDeleteMessageFromJSON(delivery.Body)
		if err != nil {
			return nil, err
		}
		if handlers.OnDelete == nil {
			return nil, nil
		}
		return func(ctx context.Context) error { return handlers.OnDelete(ctx, msg) }, nil
	case TypeSummaryDispatched:
		msg, err := SummaryDispatchedMessageFromJSON(delivery.Body)
		if err != nil {
			return nil, err
		}
		if handlers.OnSummary == nil {
			return nil, nil
		}
		return func(ctx context.Context) error { return handlers.OnSummary(ctx, msg) }, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", delivery.Type)
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
