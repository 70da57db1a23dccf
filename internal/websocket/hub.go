package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"finsight-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "finsight_events"

// Envelope is the frame written to the socket.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub fans frames out to every socket a user has open, on this instance and, through
// Redis, on the others.
type Hub struct {
	// UserID -> clients (multi-device)
	clients map[uuid.UUID][]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb *redis.Client
	// instance id, so an instance skips its own cluster messages
	origin string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client, 64),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

// Run serves registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID.String()})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[client.UserID]
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID.String()})
	}
}

// Connected is the number of sockets this instance holds for userID.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send delivers one frame to every socket of userID.
func (h *Hub) Send(userID uuid.UUID, frameType string, data interface{}) {
	frame, err := json.Marshal(Envelope{Type: frameType, Data: data})
	if err != nil {
		h.logger.Error("Hub", "Failed to encode frame", map[string]interface{}{"type": frameType, "error": err.Error()})
		return
	}

	h.deliver(userID, frame)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:       h.origin,
			TargetUserID: userID.String(),
			Message:      frame,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliver sends under the read lock so remove cannot close a channel mid-send.
func (h *Hub) deliver(userID uuid.UUID, frame []byte) {
	var dropped []*Client
	h.mu.RLock()
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- frame:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"user_id": userID.String()})
		h.unregister <- client
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if payload.Origin == h.origin {
				continue
			}
			uid, err := uuid.Parse(payload.TargetUserID)
			if err != nil {
				continue
			}
			h.deliver(uid, payload.Message)
		}
	}
}
