package serverutils

import (
	"strings"

	"finsight-be/internal/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	userIdKey      = "user_id"
	accessTokenKey = "access_token"

	AccessTokenCookie = "access_token"
)

// NewJwtMiddleware accepts the bearer header, or the access token cookie set by the web surface.
func NewJwtMiddleware(tokens *token.Manager) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		raw := BearerToken(ctx)
		if raw == "" {
			raw = ctx.Cookies(AccessTokenCookie)
		}
		if raw == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals(userIdKey, claims.UserID())
		ctx.Locals(accessTokenKey, raw)
		return ctx.Next()
	}
}

func BearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// UserID is the principal set by NewJwtMiddleware.
func UserID(ctx *fiber.Ctx) uuid.UUID {
	id, _ := ctx.Locals(userIdKey).(uuid.UUID)
	return id
}

func AccessToken(ctx *fiber.Ctx) string {
	raw, _ := ctx.Locals(accessTokenKey).(string)
	return raw
}
