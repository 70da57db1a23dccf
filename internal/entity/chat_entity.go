package entity

import (
	"time"

	"github.com/google/uuid"
)

type Chat struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	CreatedAt time.Time
}

type Message struct {
	Id        uuid.UUID
	ChatId    uuid.UUID
	Sender    string
	Content   string
	CreatedAt time.Time
}
