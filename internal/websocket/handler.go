package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs keeps the socket registered with the hub until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, userID uuid.UUID) {
	client := NewClient(hub, c, userID)
	client.Send <- readyFrame(userID)
	hub.register <- client

	go client.forward()
	client.awaitClose()
}
