package controller

import (
	"errors"
	"net/http"
	"testing"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAuthAPI(svc *mockAuthService) *fiber.App {
	a, api := newAPI()
	NewAuthController(svc, logger.NewNopLogger()).RegisterRoutes(api)
	return a
}

func TestRegisterRejectsInvalidInputBeforeCallingService(t *testing.T) {
	svc := &mockAuthService{}
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/register", dto.RegisterRequest{
		FirstName:       "Ana",
		LastName:        "Lim",
		Email:           "not-an-email",
		Password:        "longenough",
		ConfirmPassword: "different1",
	}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	fields, ok := body.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must match password", fields["confirmpassword"])
	svc.AssertNotCalled(t, "Register", mock.Anything)
}

func TestRegisterReturnsCreatedSession(t *testing.T) {
	svc := &mockAuthService{}
	userId := uuid.New()
	svc.On("Register", mock.MatchedBy(func(req *dto.RegisterRequest) bool {
		return req.Email == "ana@example.com"
	})).Return(&dto.SessionResponse{AccessToken: "access", User: dto.UserDTO{Id: userId}}, nil)
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/register", dto.RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lim",
		Email:     "ana@example.com",
		Password:  "longenough",
	}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.True(t, body.Success)
	svc.AssertExpectations(t)
}

func TestRegisterMapsTakenEmailToConflict(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Register", mock.Anything).Return(nil, apperror.ErrEmailTaken)
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/register", dto.RegisterRequest{
		FirstName: "Ana",
		LastName:  "Lim",
		Email:     "ana@example.com",
		Password:  "longenough",
	}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "email already registered", decode(t, resp).Message)
}

func TestLoginWithBadCredentialsIsUnauthorized(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Login", mock.Anything).Return(nil, apperror.ErrInvalidCredentials)
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/login", dto.LoginRequest{
		Email:    "ana@example.com",
		Password: "wrong",
	}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, decode(t, resp).Success)
}

func TestRefreshFallsBackToCookie(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Refresh", "cookie-refresh").Return(&dto.SessionResponse{AccessToken: "new"}, nil)
	a := newAuthAPI(svc)

	req := jsonRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-refresh"})
	resp, err := a.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestSessionWithoutTokenIsUnauthorized(t *testing.T) {
	svc := &mockAuthService{}
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodGet, "/api/auth/session", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	svc.AssertNotCalled(t, "CurrentSession", mock.Anything)
}

func TestLogoutSucceedsEvenWhenRevokeFails(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Logout", "refresh-1").Return(errors.New("db down"))
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/logout", dto.LogoutRequest{RefreshToken: "refresh-1"}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestResetPasswordRejectsMismatchedConfirmation(t *testing.T) {
	svc := &mockAuthService{}
	a := newAuthAPI(svc)

	resp, err := a.Test(jsonRequest(http.MethodPost, "/api/auth/reset-password", dto.ResetPasswordRequest{
		Token:           "t",
		NewPassword:     "longenough",
		ConfirmPassword: "longenougH",
	}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	svc.AssertNotCalled(t, "ResetPassword", mock.Anything)
}
