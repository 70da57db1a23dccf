package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

const PlanFree = "free"

type Subscription struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	Plan             string
	Status           SubscriptionStatus
	CreditsLimit     int
	ExternalId       *string
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type UserCredits struct {
	UserId           uuid.UUID
	CreditsAvailable int
	LastResetDate    time.Time
}
