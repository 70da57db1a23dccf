package dto

import (
	"github.com/google/uuid"
)

// PageView is the JSON view model every page of the web surface renders.
type PageView struct {
	Page   string            `json:"page"`
	Theme  string            `json:"theme"`
	User   *UserView         `json:"user,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	Notice string            `json:"notice,omitempty"`
	Data   interface{}       `json:"data,omitempty"`
}

type UserView struct {
	Id          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

type SettingsView struct {
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
	Plans        []PlanView            `json:"plans"`
}

type PlanView struct {
	PriceId      string `json:"price_id"`
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	CreditsLimit int    `json:"credits_limit"`
}

type DiagnosticsView struct {
	SessionId     string `json:"session_id"`
	Loading       bool   `json:"loading"`
	Conversations int    `json:"conversations"`
	ActiveChat    string `json:"active_chat,omitempty"`
}

type ThemeView struct {
	Theme string `json:"theme"`
}

type ResetPasswordForm struct {
	Email           string `form:"email"`
	Token           string `form:"token"`
	NewPassword     string `form:"new_password"`
	ConfirmPassword string `form:"confirm_password"`
}
