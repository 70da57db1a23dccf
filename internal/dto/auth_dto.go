package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	FirstName string `json:"first_name" form:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" form:"last_name" validate:"required,notblank,max=100"`
	Email     string `json:"email" form:"email" validate:"required,email"`
	Password  string `json:"password" form:"password" validate:"required,min=8"`
	// the web form asks twice; API clients may omit it
	ConfirmPassword string `json:"confirm_password,omitempty" form:"confirm_password" validate:"omitempty,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" form:"token" validate:"required"`
	NewPassword     string `json:"new_password" form:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// SessionResponse is what sign-in, sign-up, refresh and the OAuth callback hand back.
type SessionResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         UserDTO   `json:"user"`
}

type UserDTO struct {
	Id       uuid.UUID              `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata"`
}
