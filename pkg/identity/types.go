package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedProvider = errors.New("unsupported identity provider")

// Principal is the signed-in user as the rest of the app sees it.
type Principal struct {
	Id       uuid.UUID              `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata"`
}

func (p Principal) Clone() Principal {
	meta := make(map[string]interface{}, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	p.Metadata = meta
	return p
}

// DisplayName prefers full_name, then first and last name, then the email.
func (p Principal) DisplayName() string {
	if v, ok := p.Metadata["full_name"].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	first, _ := p.Metadata["first_name"].(string)
	last, _ := p.Metadata["last_name"].(string)
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	return p.Email
}

func (p Principal) AvatarURL() string {
	v, _ := p.Metadata["avatar_url"].(string)
	return v
}

// SignUpMetadata is the profile attached to a new account.
func SignUpMetadata(firstName, lastName string) map[string]interface{} {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	return map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
		"full_name":  strings.TrimSpace(firstName + " " + lastName),
	}
}

type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         Principal
}

type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Listener receives provider notifications. session is nil after sign-out.
type Listener func(event Event, session *AuthSession)

// Provider is the identity collaborator.
type Provider interface {
	// GetSession returns the current session, nil when nobody is signed in.
	GetSession(ctx context.Context) (*AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*AuthSession, error)
	SignOut(ctx context.Context) error
	// SignInWithOAuth returns the URL the browser must be sent to.
	SignInWithOAuth(ctx context.Context, provider string) (string, error)
	ExchangeCodeForSession(ctx context.Context, provider, code string) (*AuthSession, error)
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, recoveryToken, newPassword string) error
	OnAuthStateChange(fn Listener) (unsubscribe func())
}

// Provisioner creates per-account defaults after sign-up.
type Provisioner interface {
	Provision(ctx context.Context, accessToken string, user Principal) error
}
