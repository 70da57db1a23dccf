package service

import (
	"context"
	"fmt"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/events"
	pkgnats "finsight-be/pkg/nats"

	"github.com/google/uuid"
)

// FrameBilling carries subscription state changes to the settings surface.
const FrameBilling = "billing"

// EventSubscriber is the consuming side of the event bus.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pkgnats.EventHandler) error
}

// ActivityConsumer relays bus events that change what a signed-in user sees.
type ActivityConsumer struct {
	subscriber EventSubscriber
	notifier   Notifier
	logger     logger.ILogger
}

func NewActivityConsumer(subscriber EventSubscriber, notifier Notifier, log logger.ILogger) *ActivityConsumer {
	return &ActivityConsumer{subscriber: subscriber, notifier: notifier, logger: log}
}

func (c *ActivityConsumer) Start(ctx context.Context) error {
	subs := []struct {
		eventType string
		durable   string
	}{
		{events.SubscriptionActive, "ws-subscription-activated"},
		{events.SubscriptionCanceled, "ws-subscription-canceled"},
		{events.ChatDeleted, "ws-chat-deleted"},
	}
	for _, s := range subs {
		if err := c.subscriber.Subscribe(ctx, pkgnats.Subject(s.eventType), s.durable, c.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.eventType, err)
		}
	}
	return nil
}

// Handle turns one event into a websocket frame. Events without a valid user_id are dropped.
func (c *ActivityConsumer) Handle(ctx context.Context, event events.Event) error {
	data := event.Payload()
	raw, _ := data["user_id"].(string)
	userId, err := uuid.Parse(raw)
	if err != nil {
		c.logger.Warn("ActivityConsumer", "Event without user_id", map[string]interface{}{"event": event.EventType()})
		return nil
	}

	switch event.EventType() {
	case events.ChatDeleted:
		rawChat, _ := data["chat_id"].(string)
		chatId, err := uuid.Parse(rawChat)
		if err != nil {
			return nil
		}
		c.notifier.Send(userId, FrameConversation, conversation.Change{
			Kind:   conversation.ChangeConversationDeleted,
			UserId: userId,
			ChatId: chatId,
		})
	default:
		c.notifier.Send(userId, FrameBilling, map[string]interface{}{
			"event":       event.EventType(),
			"data":        data,
			"occurred_at": event.Timestamp(),
		})
	}
	return nil
}
