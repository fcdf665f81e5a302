package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types written to the outbox.
const (
	EventReviewCreated  = "review.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

// OutboxEvent is a domain event stored alongside the state change that
// produced it, awaiting relay to the message broker.
type OutboxEvent struct {
	ID          int64           `json:"-" db:"id"`
	EventID     uuid.UUID       `json:"eventId" db:"event_id"`
	Type        string          `json:"type" db:"event_type"`
	AggregateID string          `json:"aggregateId" db:"aggregate_id"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	SentAt      *time.Time      `json:"sentAt,omitempty" db:"sent_at"`
}

// NewOutboxEvent marshals payload into a new unsent event.
func NewOutboxEvent(eventType, aggregateID string, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		EventID:     uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
