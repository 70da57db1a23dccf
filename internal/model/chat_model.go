package model

import (
	"time"

	"github.com/google/uuid"
)

// Chat rows are hard deleted; messages go first (see ChatService.DeleteConversation).
type Chat struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

func (Chat) TableName() string {
	return "chats"
}

type Message struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Chat      *Chat     `gorm:"foreignKey:ChatId;constraint:OnDelete:RESTRICT"`
	Sender    string    `gorm:"type:varchar(20);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (Message) TableName() string {
	return "messages"
}
