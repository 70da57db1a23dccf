package model

import (
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Plan             string    `gorm:"type:varchar(50);not null;default:'free'"`
	Status           string    `gorm:"type:varchar(50);not null"`
	CreditsLimit     int       `gorm:"not null;default:0"`
	ExternalId       *string   `gorm:"type:varchar(255);index"`
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type UserCredits struct {
	UserId           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreditsAvailable int       `gorm:"not null;default:0"`
	LastResetDate    time.Time `gorm:"not null"`
}

func (UserCredits) TableName() string {
	return "user_credits"
}
