package serverutils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/repository/memory"
	"finsight-be/pkg/app"
	"finsight-be/pkg/conversation"
	"finsight-be/pkg/identity"
	"finsight-be/pkg/llm/stub"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodToken = "good-access-token"

type tokenAuth struct {
	user identity.Principal
}

func (a tokenAuth) SessionFromToken(ctx context.Context, accessToken string) (*identity.AuthSession, error) {
	if accessToken != goodToken {
		return nil, errors.New("invalid token")
	}
	return &identity.AuthSession{AccessToken: accessToken, User: a.user}, nil
}

func (a tokenAuth) Refresh(ctx context.Context, refreshToken string) (*identity.AuthSession, error) {
	return nil, errors.New("revoked")
}

func (a tokenAuth) Login(ctx context.Context, email, password string) (*identity.AuthSession, error) {
	return nil, errors.New("invalid credentials")
}

func (a tokenAuth) Register(ctx context.Context, email, password string, metadata map[string]interface{}) (*identity.AuthSession, error) {
	return nil, errors.New("closed")
}

func (a tokenAuth) Logout(ctx context.Context, refreshToken string) error { return nil }

func (a tokenAuth) OAuthURL(provider string) (string, error) {
	return "", identity.ErrUnsupportedProvider
}

func (a tokenAuth) OAuthCallback(ctx context.Context, provider, code string) (*identity.AuthSession, error) {
	return nil, identity.ErrUnsupportedProvider
}

func (a tokenAuth) ForgotPassword(ctx context.Context, email string) error { return nil }

func (a tokenAuth) ResetPassword(ctx context.Context, token, newPassword string) error { return nil }

type emptyBackend struct{}

func (emptyBackend) InsertConversation(ctx context.Context, userId uuid.UUID, title string) (conversation.Conversation, error) {
	return conversation.Conversation{Id: uuid.New(), UserId: userId, Title: title, CreatedAt: time.Now()}, nil
}

func (emptyBackend) ListConversations(ctx context.Context, userId uuid.UUID) ([]conversation.Conversation, error) {
	return nil, nil
}

func (emptyBackend) InsertMessage(ctx context.Context, userId uuid.UUID, msg conversation.Message) error {
	return nil
}

func (emptyBackend) ListMessages(ctx context.Context, userId, chatId uuid.UUID) ([]conversation.Message, error) {
	return nil, nil
}

func (emptyBackend) DeleteMessages(ctx context.Context, userId, chatId uuid.UUID) error { return nil }

func (emptyBackend) DeleteConversation(ctx context.Context, userId, chatId uuid.UUID) error {
	return nil
}

func (emptyBackend) RenameConversation(ctx context.Context, userId, chatId uuid.UUID, title string) error {
	return nil
}

func newGuardedApp(t *testing.T) (*fiber.App, *int32) {
	t.Helper()
	registry := memory.NewAppRegistry(time.Minute)
	t.Cleanup(registry.Flush)

	auth := tokenAuth{user: identity.Principal{Id: uuid.New(), Email: "ana@example.com"}}
	var created int32
	factory := func(ctx *fiber.Ctx, sid string) *app.Container {
		atomic.AddInt32(&created, 1)
		provider := identity.NewLocalProvider(auth, ctx.Cookies(AccessTokenCookie), ctx.Cookies(RefreshTokenCookie))
		return app.New(context.Background(), sid, provider, "", app.Deps{
			Backend:   emptyBackend{},
			Completer: stub.NewProvider(),
			Logger:    logger.NewNopLogger(),
		})
	}

	a := fiber.New()
	a.Use(NewAppSessionMiddleware(registry, factory, CookieOptions{MaxAge: time.Hour}))
	a.Get("/chat/:id", ProtectedRoute(), func(ctx *fiber.Ctx) error { return ctx.SendString("chat") })
	a.Get("/login", PublicRoute(), func(ctx *fiber.Ctx) error { return ctx.SendString("login") })
	return a, &created
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func TestProtectedRouteRedirectsSignedOutVisitorWithFrom(t *testing.T) {
	a, _ := newGuardedApp(t)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/chat/123", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?from=%2Fchat%2F123", resp.Header.Get(fiber.HeaderLocation))
	assert.NotNil(t, sessionCookie(resp))
}

func TestPublicRouteSendsSignedInVisitorToChat(t *testing.T) {
	a, _ := newGuardedApp(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: goodToken})
	resp, err := a.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/chat", resp.Header.Get(fiber.HeaderLocation))
}

func TestRoutesRenderForTheMatchingVisitor(t *testing.T) {
	a, _ := newGuardedApp(t)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/chat/123", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: goodToken})
	resp, err = a.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAppSessionReusesContainerForSameBrowser(t *testing.T) {
	a, created := newGuardedApp(t)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	sid := sessionCookie(resp)
	require.NotNil(t, sid)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid.Value})
	resp, err = a.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
	assert.Equal(t, int32(1), atomic.LoadInt32(created))
}
