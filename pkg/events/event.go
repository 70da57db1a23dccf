package events

import (
	"context"
	"time"
)

const (
	UserRegistered       = "USER_REGISTERED"
	UserLogin            = "USER_LOGIN"
	ChatDeleted          = "CHAT_DELETED"
	SubscriptionActive   = "SUBSCRIPTION_ACTIVATED"
	SubscriptionCanceled = "SUBSCRIPTION_CANCELED"
)

// Event is anything published on the bus.
type Event interface {
	// EventType is the subject suffix, e.g. "USER_LOGIN".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// Publisher is the write side of the bus. A nil Publisher is valid for callers that guard it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
