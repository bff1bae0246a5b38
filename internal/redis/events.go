package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BookingEventsChannel carries slot and appointment lifecycle events for
// chat and notification consumers.
const BookingEventsChannel = "booking.events"

type Event struct {
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventPublisher publishes lifecycle events over Redis pub/sub.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client, channel: BookingEventsChannel}
}

func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	data, err := json.Marshal(Event{
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", eventType, err)
	}
	return nil
}
