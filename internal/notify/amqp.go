package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"snapdiff/internal/logging"
)

// AMQPPublisher mirrors broadcasts to a RabbitMQ topic exchange using the
// routing key "<event>.<scope>".
type AMQPPublisher struct {
	exchange string
	logger   *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

type amqpMessage struct {
	Event     string    `json:"event"`
	Scope     string    `json:"scope"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload"`
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic", // type
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	logger = logging.NewComponentLogger(logger, "amqp")
	logger.Info("amqp publisher ready", logging.String("exchange", exchange))
	return &AMQPPublisher{exchange: exchange, logger: logger, conn: conn, channel: ch}, nil
}

// RoutingKey builds the topic routing key for an event.
func RoutingKey(event, scope string) string {
	if scope == "" {
		return event
	}
	return event + "." + scope
}

func (p *AMQPPublisher) Broadcast(ctx context.Context, event string, payload any, scope string) error {
	body, err := json.Marshal(amqpMessage{
		Event:     event,
		Scope:     scope,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("encode amqp message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.conn.IsClosed() {
		return fmt.Errorf("publish %s: amqp connection closed", event)
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(event, scope),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
