// Package events relays outbox events to Kafka.
package events

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/model"

	"github.com/segmentio/kafka-go"
)

// Publisher writes domain events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, events ...model.OutboxEvent) error
	Close() error
}

// MessageWriter is the subset of kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher creates a publisher over brokers. The topic is chosen per
// message, keyed by aggregate so events for one order stay ordered.
func NewKafkaPublisher(brokers []string) Publisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

// NewPublisher creates a publisher over an existing writer.
func NewPublisher(writer MessageWriter) Publisher {
	return &kafkaPublisher{writer: writer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, events ...model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, len(events))
	for i, event := range events {
		msgs[i] = toMessage(topic, event)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d messages to %s: %w", len(msgs), topic, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(topic string, event model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}
}

// Topics maps event families to broker topics.
type Topics struct {
	Reviews string
	Orders  string
}

// For returns the topic for an event type, or "" when none is configured.
func (t Topics) For(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "review."):
		return t.Reviews
	case strings.HasPrefix(eventType, "order."):
		return t.Orders
	default:
		return ""
	}
}
