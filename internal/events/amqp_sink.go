package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// amqpPublisher is the subset of *amqp.Publisher the sink needs.
type amqpPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// AMQPSink publishes events to the exchange with the kind as routing key.
type AMQPSink struct {
	publisher amqpPublisher
}

// NewAMQPSink creates an AMQP sink.
func NewAMQPSink(p amqpPublisher) *AMQPSink {
	return &AMQPSink{publisher: p}
}

// Publish implements Publisher.
func (s *AMQPSink) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("amqp sink: encoding %s: %w", e.Kind, err)
	}
	if err := s.publisher.Publish(ctx, string(e.Kind), body); err != nil {
		return fmt.Errorf("amqp sink: %w", err)
	}
	return nil
}
