// Package events ships outbox rows to the message broker.
package events

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
)

const eventTypeHeader = "event_type"

// Publisher delivers a batch of events. A nil error means every event was accepted.
type Publisher interface {
	Publish(ctx context.Context, events []domain.OutboxEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// toMessage keys by aggregate so all events of one order land on one partition.
func toMessage(ev domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: ev.Payload,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(ev.EventType)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
		Time: ev.CreatedAt,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.OutboxEvent) error {
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = toMessage(ev)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "kafka write")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the service log. It stands in for the broker
// in local setups.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events []domain.OutboxEvent) error {
	log := logger.WithContext(ctx)
	for _, ev := range events {
		log.Info().
			Str("event_id", ev.ID).
			Str("event_type", ev.EventType).
			Str("aggregate_id", ev.AggregateID).
			RawJSON("payload", ev.Payload).
			Msg("Order event")
	}
	return nil
}

func (LogPublisher) Close() error { return nil }
