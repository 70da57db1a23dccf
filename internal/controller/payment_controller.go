package controller

import (
	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPaymentController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	CreateCheckoutSession(ctx *fiber.Ctx) error
	ManageSubscription(ctx *fiber.Ctx) error
	CancelSubscription(ctx *fiber.Ctx) error
	Webhook(ctx *fiber.Ctx) error
	GetSubscription(ctx *fiber.Ctx) error
}

type paymentController struct {
	service service.IPaymentService
	logger  logger.ILogger
}

func NewPaymentController(service service.IPaymentService, log logger.ILogger) IPaymentController {
	return &paymentController{service: service, logger: log}
}

func (c *paymentController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Post("/payment/midtrans/notification", c.Webhook)

	r.Post("/create-checkout-session", auth, c.CreateCheckoutSession)
	r.Post("/manage-subscription", auth, c.ManageSubscription)
	r.Post("/cancel-subscription", auth, c.CancelSubscription)
	r.Get("/subscription", auth, c.GetSubscription)
}

func (c *paymentController) CreateCheckoutSession(ctx *fiber.Ctx) error {
	var req dto.CheckoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CreateCheckout(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *paymentController) ManageSubscription(ctx *fiber.Ctx) error {
	var req dto.ManageSubscriptionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ManageSubscription(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *paymentController) CancelSubscription(ctx *fiber.Ctx) error {
	var req dto.CancelSubscriptionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CancelSubscription(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// Webhook answers with a bare status. Anything but 2xx makes Midtrans retry.
func (c *paymentController) Webhook(ctx *fiber.Ctx) error {
	var req dto.MidtransWebhookRequest
	if err := ctx.BodyParser(&req); err != nil {
		c.logger.Warn("PaymentController", "Unreadable Midtrans notification", map[string]interface{}{"error": err.Error()})
		return ctx.SendStatus(fiber.StatusBadRequest)
	}

	if err := c.service.HandleNotification(ctx.Context(), &req); err != nil {
		c.logger.Error("PaymentController", "Failed to handle Midtrans notification", map[string]interface{}{
			"order_id": req.OrderId,
			"status":   req.TransactionStatus,
			"error":    err.Error(),
		})
		return ctx.SendStatus(apperror.StatusOf(err))
	}
	return ctx.SendStatus(fiber.StatusOK)
}

func (c *paymentController) GetSubscription(ctx *fiber.Ctx) error {
	res, err := c.service.GetSubscription(ctx.Context(), serverutils.UserID(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscription status", res))
}
