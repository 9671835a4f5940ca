// Package amqp announces stored census snapshots over RabbitMQ.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Client talks to a fanout exchange. A publisher only declares the exchange;
// a subscriber also owns a private queue bound to it, so every dashboard
// process sees every announcement and the queue disappears with it.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewPublisher connects and declares the announcement exchange.
func NewPublisher(url, exchangeName string) (*Client, error) {
	return connect(url, exchangeName, false)
}

// NewSubscriber connects, declares the exchange and binds an exclusive,
// auto-deleted, server-named queue to it.
func NewSubscriber(url, exchangeName string) (*Client, error) {
	return connect(url, exchangeName, true)
}

func connect(url, exchangeName string, subscribe bool) (*Client, error) {
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
	}

	if err := declareExchange(channel, exchangeName); err != nil {
		client.Close()
		return nil, err
	}
	if subscribe {
		client.queueName, err = declareSubscription(channel, exchangeName)
		if err != nil {
			client.Close()
			return nil, err
		}
	}

	return client, nil
}

// declarer is the topology part of *amqp091.Channel.
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

func declareExchange(ch declarer, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,               // name
		amqp091.ExchangeFanout, // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// declareSubscription creates a private queue for this process and binds it
// to the exchange. The broker names the queue.
func declareSubscription(ch declarer, exchange string) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}

	// Fanout ignores the routing key.
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue: %w", err)
	}
	return q.Name, nil
}

// PublishSnapshot announces a stored snapshot.
func (c *Client) PublishSnapshot(ctx context.Context, msg *SnapshotMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			MessageId:    msg.SnapshotID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "Published snapshot announcement",
		"snapshot_id", msg.SnapshotID,
		"records", msg.RecordCount,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeSnapshots delivers announcements to handler until ctx is done or
// the channel closes. Malformed bodies are dropped; handler errors requeue.
func (c *Client) ConsumeSnapshots(ctx context.Context, handler func(*SnapshotMessage) error) error {
	if c.queueName == "" {
		return fmt.Errorf("client has no subscription queue")
	}
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming snapshot announcements", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			process(ctx, delivery.Body, delivery, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery used for acking.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func process(ctx context.Context, body []byte, ack acknowledger, handler func(*SnapshotMessage) error) {
	msg, err := SnapshotMessageFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	if err := handler(msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"snapshot_id", msg.SnapshotID)
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
	slog.DebugContext(ctx, "Processed snapshot announcement", "snapshot_id", msg.SnapshotID)
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
