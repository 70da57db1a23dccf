package dto

import (
	"time"

	"github.com/google/uuid"
)

type CheckoutRequest struct {
	PriceId string    `json:"priceId" validate:"required"`
	UserId  uuid.UUID `json:"userId" validate:"required"`
}

type CheckoutResponse struct {
	Id          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type ManageSubscriptionRequest struct {
	SubscriptionId uuid.UUID `json:"subscriptionId" validate:"required"`
}

type ManageSubscriptionResponse struct {
	URL string `json:"url"`
}

type CancelSubscriptionRequest struct {
	SubscriptionId uuid.UUID `json:"subscriptionId" validate:"required"`
}

type CancelSubscriptionResponse struct {
	Message string `json:"message"`
}

type SubscriptionResponse struct {
	Id               uuid.UUID  `json:"id"`
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CreditsLimit     int        `json:"credits_limit"`
	CreditsAvailable int        `json:"credits_available"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

type MidtransWebhookRequest struct {
	TransactionStatus string `json:"transaction_status"`
	OrderId           string `json:"order_id"`
	FraudStatus       string `json:"fraud_status"`
	SignatureKey      string `json:"signature_key"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
}
