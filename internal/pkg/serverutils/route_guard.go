package serverutils

import (
	"finsight-be/pkg/guard"

	"github.com/gofiber/fiber/v2"
)

// ProtectedRoute lets signed-in visitors through and sends everyone else to the login page.
func ProtectedRoute() fiber.Handler {
	return routeGuard(guard.Protected)
}

// PublicRoute is for signed-out visitors; signed-in ones go to the chat.
func PublicRoute() fiber.Handler {
	return routeGuard(guard.Public)
}

func routeGuard(kind guard.Kind) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		container, ok := AppContainer(ctx)
		if !ok {
			return fiber.NewError(fiber.StatusInternalServerError, "app session missing")
		}

		_, signedIn := container.Identity.Principal()
		decision := guard.Decide(kind, signedIn, container.Identity.Loading(), ctx.OriginalURL())
		switch decision.Action {
		case guard.RenderNothing:
			return ctx.SendStatus(fiber.StatusNoContent)
		case guard.Redirect:
			return ctx.Redirect(decision.Location(), fiber.StatusSeeOther)
		}
		return ctx.Next()
	}
}
