package service

import (
	"context"
	"encoding/json"

	"finsight-be/internal/pkg/logger"
	"finsight-be/pkg/conversation"

	"github.com/google/uuid"
)

// ChangeSource is anything that reports conversation changes, e.g. an app container.
type ChangeSource interface {
	Subscribe(fn func(conversation.Change)) func()
}

// ForwardChanges puts every change of src on the change topic. Changes without an
// owner (signed-out resets) are not forwarded. The returned func stops forwarding.
func ForwardChanges(src ChangeSource, publisher IPublisherService, log logger.ILogger) func() {
	return src.Subscribe(func(c conversation.Change) {
		if c.UserId == uuid.Nil {
			return
		}
		payload, err := json.Marshal(c)
		if err != nil {
			log.Error("ChangeForwarder", "Failed to encode change", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := publisher.Publish(context.Background(), payload); err != nil {
			log.Warn("ChangeForwarder", "Failed to publish change", map[string]interface{}{
				"kind":  string(c.Kind),
				"error": err.Error(),
			})
		}
	})
}
