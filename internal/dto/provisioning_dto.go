package dto

import "github.com/google/uuid"

type ProvisionUser struct {
	Id       uuid.UUID              `json:"id" validate:"required"`
	Email    string                 `json:"email" validate:"required,email"`
	Metadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// ProvisionRequest is the body of POST /functions/v1/create_user_defaults.
type ProvisionRequest struct {
	User ProvisionUser `json:"user" validate:"required"`
}

type ProvisionResponse struct {
	SubscriptionId uuid.UUID `json:"subscription_id"`
	Plan           string    `json:"plan"`
	CreditsLimit   int       `json:"credits_limit"`
	Created        bool      `json:"created"`
}
