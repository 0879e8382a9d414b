package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// New wraps data in an envelope.
func New(aggregateType, aggregateID, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now(),
	}, nil
}

// Publisher delivers events to the outside world. kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Emit publishes an event keyed by its aggregate. Failures are logged and
// swallowed: the state change they describe is already committed.
func Emit(ctx context.Context, p Publisher, aggregateType, aggregateID, eventType string, data any) {
	if p == nil {
		return
	}
	event, err := New(aggregateType, aggregateID, eventType, data)
	if err != nil {
		log.Printf("[Events] Failed to encode %s for %s: %v", eventType, aggregateID, err)
		return
	}
	if err := p.Publish(ctx, aggregateID, event); err != nil {
		log.Printf("[Events] Failed to publish %s for %s: %v", eventType, aggregateID, err)
	}
}
