package controller

import (
	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	Session(ctx *fiber.Ctx) error
	ForgotPassword(ctx *fiber.Ctx) error
	ResetPassword(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
	logger  logger.ILogger
}

func NewAuthController(service service.IAuthService, log logger.ILogger) IAuthController {
	return &authController{service: service, logger: log}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/refresh", c.Refresh)
	h.Get("/session", c.Session)
	h.Post("/forgot-password", c.ForgotPassword)
	h.Post("/reset-password", c.ResetPassword)
	h.Post("/logout", c.Logout)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.Context(), &req, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.Response{
		Success: true,
		Code:    fiber.StatusCreated,
		Message: "User registered successfully",
		Data:    res,
	})
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.Context(), &req, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", res))
}

func (c *authController) Refresh(ctx *fiber.Ctx) error {
	var req dto.RefreshRequest
	_ = ctx.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = ctx.Cookies(serverutils.RefreshTokenCookie)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Refresh(ctx.Context(), req.RefreshToken, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Token refreshed", res))
}

// Session reports who the bearer token belongs to.
func (c *authController) Session(ctx *fiber.Ctx) error {
	raw := serverutils.BearerToken(ctx)
	if raw == "" {
		raw = ctx.Cookies(serverutils.AccessTokenCookie)
	}
	if raw == "" {
		return apperror.ErrUnauthorized
	}

	res, err := c.service.CurrentSession(ctx.Context(), raw)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Current session", res))
}

func (c *authController) ForgotPassword(ctx *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.ForgotPassword(ctx.Context(), &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("If the email exists, a reset link has been sent", nil))
}

func (c *authController) ResetPassword(ctx *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.ResetPassword(ctx.Context(), &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Password reset successful", nil))
}

// Logout always succeeds for the client; a failed revoke is only logged.
func (c *authController) Logout(ctx *fiber.Ctx) error {
	var req dto.LogoutRequest
	_ = ctx.BodyParser(&req)
	if req.RefreshToken == "" {
		req.RefreshToken = ctx.Cookies(serverutils.RefreshTokenCookie)
	}

	if err := c.service.Logout(ctx.Context(), req.RefreshToken); err != nil {
		c.logger.Warn("AuthController", "Failed to revoke refresh token", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Logged out successfully", nil))
}
