package serverutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finsight-be/internal/repository/memory"
	"finsight-be/pkg/app"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAPIPathSkipsBrowserSession(t *testing.T) {
	registry := memory.NewAppRegistry(time.Minute)
	t.Cleanup(registry.Flush)
	factory := func(ctx *fiber.Ctx, sid string) *app.Container {
		t.Errorf("browser session created for %s", ctx.Path())
		return nil
	}

	a := fiber.New()
	api := a.Group("/api")
	api.Get("/known", func(ctx *fiber.Ctx) error { return ctx.SendString("ok") })
	api.Use(APINotFound())
	web := a.Group("", NewAppSessionMiddleware(registry, factory, CookieOptions{MaxAge: time.Hour}))
	web.Use(func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusTeapot) })

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/api/known", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = a.Test(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "Route not found", body.Message)
}
