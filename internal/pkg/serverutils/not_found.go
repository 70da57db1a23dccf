package serverutils

import "github.com/gofiber/fiber/v2"

// APINotFound ends unmatched API requests before they reach the browser routes.
func APINotFound() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, "Route not found"))
	}
}
