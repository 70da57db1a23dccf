package handler

import (
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/pkg/token"
	internalWS "finsight-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler upgrades signed-in browsers to the websocket that pushes their
// conversation and billing changes.
type StreamHandler struct {
	hub    *internalWS.Hub
	tokens *token.Manager
	logger logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, tokens *token.Manager, log logger.ILogger) *StreamHandler {
	return &StreamHandler{hub: hub, tokens: tokens, logger: log}
}

// ServeWs authenticates the handshake with the token query parameter, the bearer header
// or the access token cookie, in that order.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	raw := c.Query("token")
	if raw == "" {
		raw = serverutils.BearerToken(c)
	}
	if raw == "" {
		raw = c.Cookies(serverutils.AccessTokenCookie)
	}
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
	}

	claims, err := h.tokens.Parse(raw)
	if err != nil {
		h.logger.Warn("StreamHandler", "Invalid token in websocket handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}
	userID := claims.UserID()

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("StreamHandler", "Websocket session started", map[string]interface{}{"user_id": userID.String()})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("StreamHandler", "Websocket session ended", map[string]interface{}{"user_id": userID.String()})
	})(c)
}

// Status reports how many sockets the caller has open on this instance.
func (h *StreamHandler) Status(c *fiber.Ctx) error {
	userID := serverutils.UserID(c)
	return c.JSON(serverutils.SuccessResponse("Stream status", fiber.Map{
		"connections": h.hub.Connected(userID),
	}))
}

func (h *StreamHandler) RegisterRoutes(root fiber.Router, api fiber.Router, auth fiber.Handler) {
	root.Get("/ws", h.ServeWs)
	api.Get("/stream/status", auth, h.Status)
}
