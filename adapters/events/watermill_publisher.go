package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/warden/ports"
)

// Topic carries every session event.
const Topic = "warden.events"

// Event types, also set as the "event_type" metadata key.
const (
	TypeLogout        = "session.logout"
	TypeRotation      = "session.rotated"
	TypePasswordReset = "password.reset"
)

// Event is the envelope published for every session change
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	TokenID    string    `json:"token_id,omitempty"`
	NewTokenID string    `json:"new_token_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     Topic,
	}
}

// PublishLogout announces that a renewal credential was consumed by logout
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID string, tokenID string) error {
	return p.publish(ctx, Event{
		Type:    TypeLogout,
		UserID:  userID,
		TokenID: tokenID,
	})
}

// PublishRotation announces that a renewal credential was replaced
func (p *WatermillPublisher) PublishRotation(ctx context.Context, userID string, oldTokenID, newTokenID string) error {
	return p.publish(ctx, Event{
		Type:       TypeRotation,
		UserID:     userID,
		TokenID:    oldTokenID,
		NewTokenID: newTokenID,
	})
}

// PublishPasswordReset announces a completed password reset
func (p *WatermillPublisher) PublishPasswordReset(ctx context.Context, userID string) error {
	return p.publish(ctx, Event{
		Type:   TypePasswordReset,
		UserID: userID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, event Event) error {
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("user_id", event.UserID)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
