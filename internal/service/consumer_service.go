package service

import (
	"context"
	"encoding/json"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/conversation"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// FrameConversation is the websocket frame type carrying a conversation.Change.
const FrameConversation = "conversation"

// Notifier pushes a frame to every socket of a user.
type Notifier interface {
	Send(userID uuid.UUID, frameType string, data interface{})
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	notifier  Notifier
	logger    logger.ILogger
}

// NewConsumerService drains the conversation change topic into the websocket hub.
func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, notifier Notifier, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		notifier:  notifier,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var change conversation.Change
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal change", map[string]interface{}{"error": err.Error()})
		// Ack invalid messages to prevent infinite retry
		msg.Ack()
		return
	}

	cs.notifier.Send(change.UserId, FrameConversation, change)
	msg.Ack()
}
