package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/pkg/token"
	"finsight-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-test-secret"

var tokens = token.NewManager(testSecret, time.Hour)

func bearer(t *testing.T, userId uuid.UUID) string {
	t.Helper()
	raw, _, err := tokens.Issue(userId, "ana@example.com")
	require.NoError(t, err)
	return "Bearer " + raw
}

func newAPI() (*fiber.App, fiber.Router) {
	a := fiber.New()
	a.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger()))
	return a, a.Group("/api")
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func decode(t *testing.T, resp *http.Response) serverutils.Response {
	t.Helper()
	defer resp.Body.Close()
	var out serverutils.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) session(args mock.Arguments) (*dto.SessionResponse, error) {
	res, _ := args.Get(0).(*dto.SessionResponse)
	return res, args.Error(1)
}

func (m *mockAuthService) Register(ctx context.Context, req *dto.RegisterRequest, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	return m.session(m.Called(req))
}

func (m *mockAuthService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	return m.session(m.Called(req))
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	return m.session(m.Called(refreshToken))
}

func (m *mockAuthService) CurrentSession(ctx context.Context, accessToken string) (*dto.SessionResponse, error) {
	return m.session(m.Called(accessToken))
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(refreshToken).Error(0)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockAuthService) IssueSession(ctx context.Context, userId uuid.UUID, ipAddress, userAgent string) (*dto.SessionResponse, error) {
	return m.session(m.Called(userId))
}

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) InsertConversation(ctx context.Context, userId uuid.UUID, title string) (conversation.Conversation, error) {
	args := m.Called(userId, title)
	c, _ := args.Get(0).(conversation.Conversation)
	return c, args.Error(1)
}

func (m *mockChatService) ListConversations(ctx context.Context, userId uuid.UUID) ([]conversation.Conversation, error) {
	args := m.Called(userId)
	list, _ := args.Get(0).([]conversation.Conversation)
	return list, args.Error(1)
}

func (m *mockChatService) InsertMessage(ctx context.Context, userId uuid.UUID, msg conversation.Message) error {
	return m.Called(userId, msg).Error(0)
}

func (m *mockChatService) ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]conversation.Message, error) {
	args := m.Called(userId, chatId)
	list, _ := args.Get(0).([]conversation.Message)
	return list, args.Error(1)
}

func (m *mockChatService) DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error {
	return m.Called(userId, chatId).Error(0)
}

func (m *mockChatService) DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error {
	return m.Called(userId, chatId).Error(0)
}

func (m *mockChatService) RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error {
	return m.Called(userId, chatId, title).Error(0)
}

func (m *mockChatService) GetConversation(ctx context.Context, userId, chatId uuid.UUID) (conversation.Conversation, error) {
	args := m.Called(userId, chatId)
	c, _ := args.Get(0).(conversation.Conversation)
	return c, args.Error(1)
}

func (m *mockChatService) SendMessage(ctx context.Context, userId, chatId uuid.UUID, content string) (*dto.SendMessageResponse, error) {
	args := m.Called(userId, chatId, content)
	res, _ := args.Get(0).(*dto.SendMessageResponse)
	return res, args.Error(1)
}

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) CreateCheckout(ctx context.Context, principalId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	args := m.Called(principalId, req)
	res, _ := args.Get(0).(*dto.CheckoutResponse)
	return res, args.Error(1)
}

func (m *mockPaymentService) ManageSubscription(ctx context.Context, principalId uuid.UUID, req *dto.ManageSubscriptionRequest) (*dto.ManageSubscriptionResponse, error) {
	args := m.Called(principalId, req)
	res, _ := args.Get(0).(*dto.ManageSubscriptionResponse)
	return res, args.Error(1)
}

func (m *mockPaymentService) CancelSubscription(ctx context.Context, principalId uuid.UUID, req *dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error) {
	args := m.Called(principalId, req)
	res, _ := args.Get(0).(*dto.CancelSubscriptionResponse)
	return res, args.Error(1)
}

func (m *mockPaymentService) HandleNotification(ctx context.Context, req *dto.MidtransWebhookRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockPaymentService) GetSubscription(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionResponse, error) {
	args := m.Called(userId)
	res, _ := args.Get(0).(*dto.SubscriptionResponse)
	return res, args.Error(1)
}

type mockProvisioningService struct {
	mock.Mock
}

func (m *mockProvisioningService) Provision(ctx context.Context, principalId uuid.UUID, req *dto.ProvisionRequest) (*dto.ProvisionResponse, error) {
	args := m.Called(principalId, req)
	res, _ := args.Get(0).(*dto.ProvisionResponse)
	return res, args.Error(1)
}

func (m *mockProvisioningService) EnsureDefaults(ctx context.Context, userId uuid.UUID) (*dto.ProvisionResponse, error) {
	args := m.Called(userId)
	res, _ := args.Get(0).(*dto.ProvisionResponse)
	return res, args.Error(1)
}
