package domain

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and published later by the outbox poller.
type OutboxEvent struct {
	ID          string     `json:"id"`
	AggregateID string     `json:"aggregateId"`
	EventType   string     `json:"eventType"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

func NewOutboxEvent(aggregateID, eventType string, payload any) (*OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event payload")
	}
	return &OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     b,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// EventDeduplicator remembers provider event ids that were already processed.
type EventDeduplicator interface {
	// Claim returns false when id was claimed before.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a provider retry is processed again.
	Release(ctx context.Context, id string) error
}

// OrderEvent is the payload of every order.* event.
type OrderEvent struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	PaymentMethod string    `json:"paymentMethod"`
	Total         string    `json:"total"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewOrderEvent(o *Order, reason string) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total.StringFixed(2),
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}
