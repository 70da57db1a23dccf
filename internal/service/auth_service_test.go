package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/token"
	"finsight-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	db     *memDB
	mailer *recordingMailer
	events *recordingPublisher
	tokens *token.Manager
	svc    IAuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		db:     newMemDB(),
		mailer: newRecordingMailer(),
		events: &recordingPublisher{},
		tokens: token.NewManager("test-secret", time.Hour),
	}
	f.svc = NewAuthService(f.db, f.mailer, f.events, f.tokens, 24*time.Hour, logger.NewNopLogger())
	return f
}

func waitForMail(t *testing.T, m *recordingMailer) {
	t.Helper()
	select {
	case <-m.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no mail sent")
	}
}

func (f *authFixture) register(t *testing.T, email, password string) *dto.SessionResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lim",
		Email:     email,
		Password:  password,
	}, "127.0.0.1", "test")
	require.NoError(t, err)
	waitForMail(t, f.mailer)
	return resp
}

func TestRegisterReturnsSessionWithProfile(t *testing.T) {
	f := newAuthFixture()

	resp := f.register(t, "Ana@Example.com", "password1")

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.Equal(t, "Ana Lim", resp.User.Metadata["full_name"])
	assert.Equal(t, "Ana", resp.User.Metadata["first_name"])

	claims, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.Id, claims.UserID())

	assert.Equal(t, []string{events.UserRegistered}, f.events.Types())
	assert.Equal(t, 1, f.db.commits)
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "ana@example.com", "password1")

	_, err := f.svc.Register(context.Background(), &dto.RegisterRequest{
		FirstName: "Other", LastName: "Person", Email: "ANA@example.com", Password: "password2",
	}, "", "")

	assert.ErrorIs(t, err, apperror.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "ana@example.com", "password1")
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "password1"}, "", "firefox")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.Contains(t, f.events.Types(), events.UserLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "nope"}, "", "")
		assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "who@example.com", Password: "password1"}, "", "")
		assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
	})
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture()
	first := f.register(t, "ana@example.com", "password1")
	ctx := context.Background()

	second, err := f.svc.Refresh(ctx, first.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.User.Id, second.User.Id)

	_, err = f.svc.Refresh(ctx, first.RefreshToken, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken, "a rotated token cannot be replayed")

	_, err = f.svc.Refresh(ctx, "garbage", "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestRefreshTokensAreStoredHashed(t *testing.T) {
	f := newAuthFixture()
	resp := f.register(t, "ana@example.com", "password1")

	for _, stored := range f.db.refreshTokens {
		assert.NotEqual(t, resp.RefreshToken, stored.TokenHash)
		assert.Equal(t, hashToken(resp.RefreshToken), stored.TokenHash)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newAuthFixture()
	resp := f.register(t, "ana@example.com", "password1")
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, resp.RefreshToken))
	_, err := f.svc.Refresh(ctx, resp.RefreshToken, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)

	assert.NoError(t, f.svc.Logout(ctx, ""))
}

func TestCurrentSession(t *testing.T) {
	f := newAuthFixture()
	resp := f.register(t, "ana@example.com", "password1")
	ctx := context.Background()

	got, err := f.svc.CurrentSession(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.Id, got.User.Id)
	assert.Empty(t, got.RefreshToken)

	_, err = f.svc.CurrentSession(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture()
	f.register(t, "ana@example.com", "password1")
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "ana@example.com"}))
	waitForMail(t, f.mailer)
	resetToken := f.mailer.resetToken("ana@example.com")
	require.NotEmpty(t, resetToken)

	err := f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: resetToken, NewPassword: "password2", ConfirmPassword: "password2"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "password2"}, "", "")
	assert.NoError(t, err)
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "password1"}, "", "")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)

	err = f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Token: resetToken, NewPassword: "password3", ConfirmPassword: "password3"})
	assert.ErrorIs(t, err, apperror.ErrInvalidToken, "reset links are single use")
}

func TestForgotPasswordDoesNotRevealUnknownEmail(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.ForgotPassword(context.Background(), &dto.ForgotPasswordRequest{Email: "nobody@example.com"})

	assert.NoError(t, err)
	assert.Empty(t, f.db.resetTokens)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	f := newAuthFixture()
	resp := f.register(t, "ana@example.com", "password1")
	ctx := context.Background()
	require.NoError(t, f.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "ana@example.com"}))
	waitForMail(t, f.mailer)

	for _, tok := range f.db.resetTokens {
		tok.ExpiresAt = time.Now().Add(-time.Minute)
	}
	err := f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{
		Token:       f.mailer.resetToken(resp.User.Email),
		NewPassword: "password2",
	})

	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Error(), "expired")
}
