package controller

import (
	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IProvisioningController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	CreateUserDefaults(ctx *fiber.Ctx) error
}

type provisioningController struct {
	service service.IProvisioningService
}

func NewProvisioningController(service service.IProvisioningService) IProvisioningController {
	return &provisioningController{service: service}
}

func (c *provisioningController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Post("/functions/v1/create_user_defaults", auth, c.CreateUserDefaults)
}

func (c *provisioningController) CreateUserDefaults(ctx *fiber.Ctx) error {
	var req dto.ProvisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Provision(ctx.Context(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("User defaults ready", res))
}
