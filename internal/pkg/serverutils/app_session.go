package serverutils

import (
	"sync"
	"time"

	"finsight-be/pkg/app"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	SessionCookie      = "sid"
	RefreshTokenCookie = "refresh_token"

	appContainerKey = "app_container"
)

// AppRegistry is where browser session containers live between requests.
type AppRegistry interface {
	Get(sessionID string) (*app.Container, bool)
	Save(container *app.Container)
}

// AppFactory builds the container of a browser session seen for the first time.
type AppFactory func(ctx *fiber.Ctx, sessionID string) *app.Container

type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

// NewAppSessionMiddleware loads the container of the browser session named by the sid
// cookie, creating both when missing.
func NewAppSessionMiddleware(registry AppRegistry, factory AppFactory, opts CookieOptions) fiber.Handler {
	var createMu sync.Mutex

	return func(ctx *fiber.Ctx) error {
		sid := ctx.Cookies(SessionCookie)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			SetCookie(ctx, SessionCookie, sid, opts.MaxAge, opts)
		}

		container, ok := registry.Get(sid)
		if !ok {
			createMu.Lock()
			if container, ok = registry.Get(sid); !ok {
				container = factory(ctx, sid)
				registry.Save(container)
			}
			createMu.Unlock()
		}

		ctx.Locals(appContainerKey, container)
		return ctx.Next()
	}
}

// AppContainer is the container set by NewAppSessionMiddleware.
func AppContainer(ctx *fiber.Ctx) (*app.Container, bool) {
	c, ok := ctx.Locals(appContainerKey).(*app.Container)
	return c, ok && c != nil
}

// SyncAuthCookies mirrors the session tokens into the browser, clearing them after sign-out.
func SyncAuthCookies(ctx *fiber.Ctx, container *app.Container, opts CookieOptions) {
	access, refresh := container.Identity.Tokens()
	syncCookie(ctx, AccessTokenCookie, access, opts)
	syncCookie(ctx, RefreshTokenCookie, refresh, opts)
}

func syncCookie(ctx *fiber.Ctx, name, value string, opts CookieOptions) {
	if ctx.Cookies(name) == value {
		return
	}
	if value == "" {
		ClearCookie(ctx, name, opts)
		return
	}
	SetCookie(ctx, name, value, opts.MaxAge, opts)
}

func SetCookie(ctx *fiber.Ctx, name, value string, maxAge time.Duration, opts CookieOptions) {
	ctx.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   opts.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func ClearCookie(ctx *fiber.Ctx, name string, opts CookieOptions) {
	ctx.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   opts.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
