package controller

import (
	"strings"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Get(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/chats", auth)
	h.Get("/", c.List)
	h.Post("/", c.Create)
	h.Get("/:id", c.Get)
	h.Patch("/:id", c.Rename)
	h.Delete("/:id", c.Delete)
	h.Get("/:id/messages", c.Messages)
	h.Post("/:id/messages", c.SendMessage)
}

func chatIDParam(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid chat id")
	}
	return id, nil
}

func (c *chatController) List(ctx *fiber.Ctx) error {
	list, err := c.service.ListConversations(ctx.Context(), serverutils.UserID(ctx))
	if err != nil {
		return err
	}
	res := make([]dto.ChatResponse, 0, len(list))
	for _, chat := range list {
		res = append(res, service.ToChatResponse(chat))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching chats", res))
}

func (c *chatController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	chat, err := c.service.InsertConversation(ctx.Context(), serverutils.UserID(ctx), strings.TrimSpace(req.Title))
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.Response{
		Success: true,
		Code:    fiber.StatusCreated,
		Message: "Chat created",
		Data:    service.ToChatResponse(chat),
	})
}

func (c *chatController) Get(ctx *fiber.Ctx) error {
	chatId, err := chatIDParam(ctx)
	if err != nil {
		return err
	}
	chat, err := c.service.GetConversation(ctx.Context(), serverutils.UserID(ctx), chatId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching chat", service.ToChatResponse(chat)))
}

// Rename ignores a blank title and answers with the unchanged chat.
func (c *chatController) Rename(ctx *fiber.Ctx) error {
	chatId, err := chatIDParam(ctx)
	if err != nil {
		return err
	}
	var req dto.RenameChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	userId := serverutils.UserID(ctx)
	if title := strings.TrimSpace(req.Title); title != "" {
		if err := c.service.RenameConversation(ctx.Context(), userId, chatId, title); err != nil {
			return err
		}
	}

	chat, err := c.service.GetConversation(ctx.Context(), userId, chatId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat renamed", service.ToChatResponse(chat)))
}

// Delete removes the messages before the chat that owns them.
func (c *chatController) Delete(ctx *fiber.Ctx) error {
	chatId, err := chatIDParam(ctx)
	if err != nil {
		return err
	}
	userId := serverutils.UserID(ctx)

	if err := c.service.DeleteMessages(ctx.Context(), userId, chatId); err != nil {
		return err
	}
	if err := c.service.DeleteConversation(ctx.Context(), userId, chatId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat deleted", nil))
}

func (c *chatController) Messages(ctx *fiber.Ctx) error {
	chatId, err := chatIDParam(ctx)
	if err != nil {
		return err
	}
	msgs, err := c.service.ListMessages(ctx.Context(), serverutils.UserID(ctx), chatId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success fetching messages", service.ToMessageResponses(msgs)))
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	chatId, err := chatIDParam(ctx)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.Context(), serverutils.UserID(ctx), chatId, req.Content)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.Response{
		Success: true,
		Code:    fiber.StatusCreated,
		Message: "Message sent",
		Data:    res,
	})
}
