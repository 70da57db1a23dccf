package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
}

type RenameChatRequest struct {
	Title string `json:"title" form:"title" validate:"max=200"`
}

type SendMessageRequest struct {
	Content string `json:"content" form:"content" validate:"required,notblank"`
}

type ChatResponse struct {
	Id        uuid.UUID `json:"id"`
	UserId    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	ChatId    uuid.UUID `json:"chat_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageResponse struct {
	ChatId uuid.UUID        `json:"chat_id"`
	Sent   MessageResponse  `json:"sent"`
	Reply  *MessageResponse `json:"reply,omitempty"`
}
