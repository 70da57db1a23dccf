package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"finsight-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func registerClient(t *testing.T, h *Hub, userID uuid.UUID, buffer int) *Client {
	t.Helper()
	c := &Client{Hub: h, UserID: userID, Send: make(chan []byte, buffer)}
	h.register <- c
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for _, x := range h.clients[userID] {
			if x == c {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return c
}

func TestSendReachesEveryDeviceOfTheUser(t *testing.T) {
	h := startHub(t)
	user := uuid.New()
	other := uuid.New()
	phone := registerClient(t, h, user, 4)
	laptop := registerClient(t, h, user, 4)
	stranger := registerClient(t, h, other, 4)

	h.Send(user, "conversation", map[string]string{"kind": "message_added"})

	for _, c := range []*Client{phone, laptop} {
		select {
		case frame := <-c.Send:
			var env struct {
				Type string            `json:"type"`
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(frame, &env))
			assert.Equal(t, "conversation", env.Type)
			assert.Equal(t, "message_added", env.Data["kind"])
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
	assert.Len(t, stranger.Send, 0)
}

func TestFullClientIsDropped(t *testing.T) {
	h := startHub(t)
	user := uuid.New()
	c := registerClient(t, h, user, 1)

	h.Send(user, "ping", nil)
	h.Send(user, "ping", nil)

	assert.Eventually(t, func() bool { return h.Connected(user) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.Send
	assert.True(t, open, "buffered frame is still readable")
	_, open = <-c.Send
	assert.False(t, open)
}

func TestUnregisterTwiceIsHarmless(t *testing.T) {
	h := startHub(t)
	user := uuid.New()
	c := registerClient(t, h, user, 1)

	h.unregister <- c
	h.unregister <- c

	assert.Eventually(t, func() bool { return h.Connected(user) == 0 }, time.Second, 5*time.Millisecond)
}
