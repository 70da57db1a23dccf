package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatID struct {
	ChatID uuid.UUID
}

func (s ByChatID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_id = ?", s.ChatID)
}

// NewestFirst is the conversation list order.
func NewestFirst() Specification {
	return OrderBy{Field: "created_at", Desc: true}
}

// OldestFirst is the message order, both persisted and rendered.
// id breaks ties between messages written in the same instant (UUIDv7 is time ordered).
type OldestFirst struct{}

func (s OldestFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
