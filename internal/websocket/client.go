package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	readLimit    = 512
	sendBuffered = 256
)

// FrameReady is the first frame on every socket.
const FrameReady = "ready"

// Client is one open socket of a signed-in user. The stream is push only.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	UserID uuid.UUID
	// Send is closed by the hub once the client is unregistered.
	Send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{Hub: hub, Conn: conn, UserID: userID, Send: make(chan []byte, sendBuffered)}
}

func readyFrame(userID uuid.UUID) []byte {
	frame, _ := json.Marshal(Envelope{Type: FrameReady, Data: map[string]string{"user_id": userID.String()}})
	return frame
}

// awaitClose blocks until the peer goes away, answering pings meanwhile.
func (c *Client) awaitClose() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WSClient", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID.String(),
					"error":   err.Error(),
				})
			}
			return
		}
	}
}

// forward writes queued frames and keeps the connection alive with pings.
func (c *Client) forward() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
