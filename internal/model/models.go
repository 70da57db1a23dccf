package model

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PasswordResetToken{},
		&UserProvider{},
		&UserRefreshToken{},
		&Chat{},
		&Message{},
		&Subscription{},
		&UserCredits{},
	}
}
