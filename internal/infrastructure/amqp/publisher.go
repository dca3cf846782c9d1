package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/tronix365/sensegrid/internal/infrastructure/config"
)

const exchangeKind = "topic"

var (
	ErrDisabled         = errors.New("amqp: disabled in configuration")
	ErrConnectionFailed = errors.New("amqp: connection failed")
	ErrPublishFailed    = errors.New("amqp: publish failed")
	ErrClosed           = errors.New("amqp: publisher closed")
)

// Publisher owns one connection and channel. Channels are not safe for
// concurrent publishing, so Publish serialises on mu.
type Publisher struct {
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string

	mu     sync.Mutex
	closed bool
	now    func() time.Time
}

// Connect dials the broker and declares the durable topic exchange.
func Connect(cfg config.AMQPConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: open channel: %w", ErrConnectionFailed, err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		exchangeKind,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		conn.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: declare exchange %s: %w", ErrConnectionFailed, cfg.Exchange, err)
	}

	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		now:      time.Now,
	}, nil
}

// Exchange returns the exchange events are published to.
func (p *Publisher) Exchange() string {
	return p.exchange
}

// Publish sends a persistent JSON message with the given routing key.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.ch == nil {
		return ErrClosed
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, routingKey, err)
	}
	return nil
}

// HealthCheck reports whether the connection is still open.
func (p *Publisher) HealthCheck(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.conn == nil || p.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes the channel and connection. Repeated calls are no-ops.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
