package service

import (
	"context"

	"finsight-be/internal/dto"
	"finsight-be/pkg/identity"
)

// IdentityAdapter lets an identity.LocalProvider drive the account services for one
// browser. The request origin is fixed when the browser session is created.
type IdentityAdapter struct {
	auth      IAuthService
	oauth     IOAuthService
	ipAddress string
	userAgent string
}

var _ identity.Authenticator = (*IdentityAdapter)(nil)

func NewIdentityAdapter(auth IAuthService, oauth IOAuthService, ipAddress, userAgent string) *IdentityAdapter {
	return &IdentityAdapter{auth: auth, oauth: oauth, ipAddress: ipAddress, userAgent: userAgent}
}

func toAuthSession(resp *dto.SessionResponse) *identity.AuthSession {
	if resp == nil {
		return nil
	}
	return &identity.AuthSession{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
		User: identity.Principal{
			Id:       resp.User.Id,
			Email:    resp.User.Email,
			Metadata: resp.User.Metadata,
		},
	}
}

func (a *IdentityAdapter) SessionFromToken(ctx context.Context, accessToken string) (*identity.AuthSession, error) {
	resp, err := a.auth.CurrentSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return toAuthSession(resp), nil
}

func (a *IdentityAdapter) Refresh(ctx context.Context, refreshToken string) (*identity.AuthSession, error) {
	resp, err := a.auth.Refresh(ctx, refreshToken, a.ipAddress, a.userAgent)
	if err != nil {
		return nil, err
	}
	return toAuthSession(resp), nil
}

func (a *IdentityAdapter) Login(ctx context.Context, email, password string) (*identity.AuthSession, error) {
	resp, err := a.auth.Login(ctx, &dto.LoginRequest{Email: email, Password: password}, a.ipAddress, a.userAgent)
	if err != nil {
		return nil, err
	}
	return toAuthSession(resp), nil
}

func (a *IdentityAdapter) Register(ctx context.Context, email, password string, metadata map[string]interface{}) (*identity.AuthSession, error) {
	req := &dto.RegisterRequest{Email: email, Password: password}
	req.FirstName, _ = metadata["first_name"].(string)
	req.LastName, _ = metadata["last_name"].(string)

	resp, err := a.auth.Register(ctx, req, a.ipAddress, a.userAgent)
	if err != nil {
		return nil, err
	}
	return toAuthSession(resp), nil
}

func (a *IdentityAdapter) Logout(ctx context.Context, refreshToken string) error {
	return a.auth.Logout(ctx, refreshToken)
}

func (a *IdentityAdapter) OAuthURL(provider string) (string, error) {
	return a.oauth.GetLoginURL(provider)
}

func (a *IdentityAdapter) OAuthCallback(ctx context.Context, provider, code string) (*identity.AuthSession, error) {
	resp, err := a.oauth.HandleCallback(ctx, provider, code, a.ipAddress, a.userAgent)
	if err != nil {
		return nil, err
	}
	return toAuthSession(resp), nil
}

func (a *IdentityAdapter) ForgotPassword(ctx context.Context, email string) error {
	return a.auth.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: email})
}

func (a *IdentityAdapter) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.auth.ResetPassword(ctx, &dto.ResetPasswordRequest{
		Token:           token,
		NewPassword:     newPassword,
		ConfirmPassword: newPassword,
	})
}
