package controller

import (
	"net/http"
	"testing"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateUserDefaults(t *testing.T) {
	userId := uuid.New()
	svc := &mockProvisioningService{}
	svc.On("Provision", userId, mock.MatchedBy(func(req *dto.ProvisionRequest) bool {
		return req.User.Id == userId
	})).Return(&dto.ProvisionResponse{Plan: "free", CreditsLimit: 10, Created: true}, nil)

	a := fiber.New()
	a.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger()))
	NewProvisioningController(svc).RegisterRoutes(a, serverutils.NewJwtMiddleware(tokens))

	req := jsonRequest(http.MethodPost, "/functions/v1/create_user_defaults", dto.ProvisionRequest{
		User: dto.ProvisionUser{Id: userId, Email: "ana@example.com"},
	})
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, userId))
	resp, err := a.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decode(t, resp).Data.(map[string]interface{})
	assert.Equal(t, "free", data["plan"])
	assert.Equal(t, true, data["created"])
	svc.AssertExpectations(t)
}

func TestCreateUserDefaultsNeedsBearer(t *testing.T) {
	svc := &mockProvisioningService{}
	a := fiber.New()
	NewProvisioningController(svc).RegisterRoutes(a, serverutils.NewJwtMiddleware(tokens))

	resp, err := a.Test(jsonRequest(http.MethodPost, "/functions/v1/create_user_defaults", dto.ProvisionRequest{}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	svc.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
}
