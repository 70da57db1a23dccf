package controller

import (
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"
	"finsight-be/pkg/guard"

	"github.com/gofiber/fiber/v2"
)

// IOAuthController runs the Google sign-in round trip for a browser session.
type IOAuthController interface {
	RegisterRoutes(r fiber.Router)
	Login(ctx *fiber.Ctx) error
	Callback(ctx *fiber.Ctx) error
}

type oauthController struct {
	service service.IOAuthService
	cookies serverutils.CookieOptions
	logger  logger.ILogger
}

func NewOAuthController(service service.IOAuthService, cookies serverutils.CookieOptions, log logger.ILogger) IOAuthController {
	return &oauthController{service: service, cookies: cookies, logger: log}
}

// RegisterRoutes expects the app session middleware on r.
func (c *oauthController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Get("/google", c.Login)
	h.Get("/google/callback", c.Callback)
}

func (c *oauthController) Login(ctx *fiber.Ctx) error {
	container, ok := serverutils.AppContainer(ctx)
	if !ok {
		return fiber.ErrInternalServerError
	}

	url, err := container.Identity.GoogleSignIn(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.Redirect(url, fiber.StatusSeeOther)
}

func (c *oauthController) Callback(ctx *fiber.Ctx) error {
	container, ok := serverutils.AppContainer(ctx)
	if !ok {
		return fiber.ErrInternalServerError
	}

	if reason := ctx.Query("error"); reason != "" {
		c.logger.Warn("OAuthController", "Google sign-in declined", map[string]interface{}{"reason": reason})
		return ctx.Redirect(guard.LoginPath+"?error=oauth", fiber.StatusSeeOther)
	}
	if err := c.service.ConsumeState(ctx.Query("state")); err != nil {
		c.logger.Warn("OAuthController", "Rejected OAuth callback", map[string]interface{}{"error": err.Error()})
		return ctx.Redirect(guard.LoginPath+"?error=oauth", fiber.StatusSeeOther)
	}

	code := ctx.Query("code")
	if code == "" {
		return ctx.Redirect(guard.LoginPath+"?error=oauth", fiber.StatusSeeOther)
	}

	if err := container.Identity.CompleteOAuth(ctx.Context(), service.ProviderGoogle, code); err != nil {
		c.logger.Error("OAuthController", "Google callback failed", map[string]interface{}{"error": err.Error()})
		return ctx.Redirect(guard.LoginPath+"?error=oauth", fiber.StatusSeeOther)
	}

	serverutils.SyncAuthCookies(ctx, container, c.cookies)
	return ctx.Redirect(guard.HomePath, fiber.StatusSeeOther)
}
