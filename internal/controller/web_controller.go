package controller

import (
	"errors"
	"sort"
	"strings"

	"finsight-be/internal/dto"
	"finsight-be/internal/pkg/apperror"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/service"
	"finsight-be/pkg/app"
	"finsight-be/pkg/chatsurface"
	"finsight-be/pkg/guard"
	"finsight-be/pkg/theme"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	PageHome          = "home"
	PageChat          = "chat"
	PageSettings      = "settings"
	PageTest          = "test"
	PageLogin         = "login"
	PageSignup        = "signup"
	PageResetPassword = "reset-password"
	PageNotFound      = "not-found"
)

// IWebController serves the browser navigation surface as JSON view models backed by
// the session's app container.
type IWebController interface {
	RegisterRoutes(r fiber.Router)
	NotFound(ctx *fiber.Ctx) error
}

type webController struct {
	payments service.IPaymentService
	cookies  serverutils.CookieOptions
	logger   logger.ILogger
}

func NewWebController(payments service.IPaymentService, cookies serverutils.CookieOptions, log logger.ILogger) IWebController {
	return &webController{payments: payments, cookies: cookies, logger: log}
}

// RegisterRoutes expects the app session middleware on r. The wildcard goes last, see NotFound.
func (c *webController) RegisterRoutes(r fiber.Router) {
	protected := serverutils.ProtectedRoute()
	public := serverutils.PublicRoute()

	r.Get("/", c.Home)
	r.Post("/theme", c.ToggleTheme)
	r.Post("/logout", c.Logout)

	r.Get("/login", public, c.LoginPage)
	r.Post("/login", public, c.Login)
	r.Get("/signup", public, c.SignupPage)
	r.Post("/signup", public, c.Signup)
	r.Get("/reset-password", public, c.ResetPasswordPage)
	r.Post("/reset-password", public, c.ResetPassword)

	r.Get("/chat", protected, c.ChatPage)
	r.Post("/chat", protected, c.Submit)
	r.Get("/chat/:id", protected, c.ChatPage)
	r.Post("/chat/:id", protected, c.Submit)
	r.Post("/chat/:id/stop", protected, c.Stop)
	r.Post("/chat/:id/rename", protected, c.Rename)
	r.Post("/chat/:id/delete", protected, c.Delete)
	r.Get("/settings", protected, c.Settings)
	r.Get("/test", protected, c.Test)
}

func appContainer(ctx *fiber.Ctx) (*app.Container, error) {
	c, ok := serverutils.AppContainer(ctx)
	if !ok {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "app session missing")
	}
	return c, nil
}

func (c *webController) page(ctx *fiber.Ctx, container *app.Container, status int, view dto.PageView) error {
	view.Theme = string(container.Theme.Mode())
	if p, ok := container.Identity.Principal(); ok {
		view.User = &dto.UserView{
			Id:          p.Id,
			Email:       p.Email,
			DisplayName: p.DisplayName(),
			AvatarURL:   p.AvatarURL(),
		}
	}
	return ctx.Status(status).JSON(view)
}

// redirect keeps the browser's auth cookies in step with the session before leaving.
func (c *webController) redirect(ctx *fiber.Ctx, container *app.Container, to string) error {
	serverutils.SyncAuthCookies(ctx, container, c.cookies)
	return ctx.Redirect(to, fiber.StatusSeeOther)
}

func (c *webController) Home(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	return c.page(ctx, container, fiber.StatusOK, dto.PageView{Page: PageHome})
}

func (c *webController) ToggleTheme(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	mode := container.Theme.Toggle()
	serverutils.SetCookie(ctx, theme.CookieName, string(mode), theme.CookieMaxAge, c.cookies)
	return ctx.JSON(dto.ThemeView{Theme: string(mode)})
}

func (c *webController) LoginPage(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	view := dto.PageView{Page: PageLogin}
	switch {
	case ctx.Query("error") == "oauth":
		view.Errors = map[string]string{"form": "Google sign-in failed"}
	case ctx.Query("reset") == "done":
		view.Notice = "Password updated, please sign in"
	}
	return c.page(ctx, container, fiber.StatusOK, view)
}

func (c *webController) Login(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}

	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{Page: PageLogin, Errors: serverutils.FieldErrors(err)})
	}

	if err := container.Identity.SignIn(ctx.Context(), strings.ToLower(strings.TrimSpace(req.Email)), req.Password); err != nil {
		status := apperror.StatusOf(err)
		message := "Invalid email or password"
		if status >= fiber.StatusInternalServerError {
			c.logger.Error("WebController", "Sign-in failed", map[string]interface{}{"error": err.Error()})
			message = "Sign-in is unavailable, try again later"
		}
		return c.page(ctx, container, status, dto.PageView{Page: PageLogin, Errors: map[string]string{"form": message}})
	}
	return c.redirect(ctx, container, guard.SafeFrom(ctx.Query("from")))
}

func (c *webController) SignupPage(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	return c.page(ctx, container, fiber.StatusOK, dto.PageView{Page: PageSignup, Data: fiber.Map{"plans": planViews()}})
}

// Signup asks for the password twice; the mismatch is caught before any account call.
func (c *webController) Signup(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}

	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{Page: PageSignup, Errors: serverutils.FieldErrors(err)})
	}
	if req.ConfirmPassword != req.Password {
		return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{
			Page:   PageSignup,
			Errors: map[string]string{"confirm_password": "Passwords do not match"},
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := container.Identity.SignUp(ctx.Context(), email, req.Password, req.FirstName, req.LastName); err != nil {
		status := apperror.StatusOf(err)
		message := err.Error()
		if status >= fiber.StatusInternalServerError {
			c.logger.Error("WebController", "Sign-up failed", map[string]interface{}{"error": err.Error()})
			message = "Sign-up is unavailable, try again later"
		}
		return c.page(ctx, container, status, dto.PageView{Page: PageSignup, Errors: map[string]string{"form": message}})
	}
	return c.redirect(ctx, container, guard.HomePath)
}

// Logout signs the session out even when revoking the refresh token fails.
func (c *webController) Logout(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	if err := container.Identity.SignOut(ctx.Context()); err != nil {
		c.logger.Warn("WebController", "Sign-out reported an error", map[string]interface{}{"error": err.Error()})
	}
	return c.redirect(ctx, container, guard.LoginPath)
}

func (c *webController) ResetPasswordPage(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	view := dto.PageView{Page: PageResetPassword}
	if token := ctx.Query("token"); token != "" {
		view.Data = fiber.Map{"token": token}
	}
	return c.page(ctx, container, fiber.StatusOK, view)
}

// ResetPassword requests a reset link, or sets the new password when the form carries
// the token from that link.
func (c *webController) ResetPassword(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}

	var form dto.ResetPasswordForm
	if err := ctx.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}

	if form.Token == "" {
		req := dto.ForgotPasswordRequest{Email: strings.TrimSpace(form.Email)}
		if err := serverutils.ValidateRequest(req); err != nil {
			return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{Page: PageResetPassword, Errors: serverutils.FieldErrors(err)})
		}
		if err := container.Identity.ResetPassword(ctx.Context(), req.Email); err != nil {
			return err
		}
		return c.page(ctx, container, fiber.StatusOK, dto.PageView{
			Page:   PageResetPassword,
			Notice: "If the email exists, a reset link has been sent",
		})
	}

	req := dto.ResetPasswordRequest{Token: form.Token, NewPassword: form.NewPassword, ConfirmPassword: form.ConfirmPassword}
	if err := serverutils.ValidateRequest(req); err != nil {
		return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{
			Page:   PageResetPassword,
			Errors: serverutils.FieldErrors(err),
			Data:   fiber.Map{"token": form.Token},
		})
	}
	if err := container.Identity.UpdatePassword(ctx.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, apperror.ErrInvalidToken) {
			return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{
				Page:   PageResetPassword,
				Errors: map[string]string{"token": err.Error()},
			})
		}
		return err
	}
	return ctx.Redirect(guard.LoginPath+"?reset=done", fiber.StatusSeeOther)
}

// chatID reads :id; the bool is false for a malformed id.
func chatID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	raw := ctx.Params("id")
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func (c *webController) ChatPage(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	chatId, ok := chatID(ctx)
	if !ok {
		return c.NotFound(ctx)
	}

	if chatId != uuid.Nil {
		if _, known := container.Store.Conversation(chatId); !known {
			// may have been created from another device
			container.Store.LoadConversations(ctx.Context())
			if _, known = container.Store.Conversation(chatId); !known {
				return c.NotFound(ctx)
			}
		}
		if active, _ := container.Store.Active(); active != chatId {
			container.Store.SetActive(chatId)
		}
		if container.Surface.State(chatId) == chatsurface.Idle {
			container.Store.FetchMessages(ctx.Context(), chatId)
		}
	} else if _, hasActive := container.Store.Active(); hasActive {
		container.Store.SetActive(uuid.Nil)
	}

	view := dto.PageView{Page: PageChat, Data: container.Surface.View(chatId)}
	if ctx.Query("error") == "reply" {
		view.Errors = map[string]string{"reply": "The assistant could not answer, try again"}
	}
	return c.page(ctx, container, fiber.StatusOK, view)
}

func chatPath(chatId uuid.UUID) string {
	return guard.HomePath + "/" + chatId.String()
}

func (c *webController) Submit(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	chatId, ok := chatID(ctx)
	if !ok {
		return c.NotFound(ctx)
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}

	chatId, err = container.Surface.Submit(ctx.Context(), chatId, req.Content)
	switch {
	case err == nil:
		return ctx.Redirect(chatPath(chatId), fiber.StatusSeeOther)
	case errors.Is(err, chatsurface.ErrEmptyMessage):
		return c.page(ctx, container, fiber.StatusBadRequest, dto.PageView{
			Page:   PageChat,
			Errors: map[string]string{"content": "is required"},
			Data:   container.Surface.View(chatId),
		})
	case errors.Is(err, chatsurface.ErrBusy):
		return c.page(ctx, container, fiber.StatusConflict, dto.PageView{
			Page:   PageChat,
			Errors: map[string]string{"content": "Wait for the current answer or stop it"},
			Data:   container.Surface.View(chatId),
		})
	case chatId != uuid.Nil:
		c.logger.Error("WebController", "Chat submit failed", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return ctx.Redirect(chatPath(chatId)+"?error=reply", fiber.StatusSeeOther)
	default:
		return err
	}
}

func (c *webController) Stop(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	chatId, ok := chatID(ctx)
	if !ok {
		return c.NotFound(ctx)
	}
	container.Surface.Stop(chatId)
	return ctx.Redirect(chatPath(chatId), fiber.StatusSeeOther)
}

func (c *webController) Rename(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	chatId, ok := chatID(ctx)
	if !ok {
		return c.NotFound(ctx)
	}

	var req dto.RenameChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}
	container.Store.RenameConversation(ctx.Context(), chatId, req.Title)
	return ctx.Redirect(chatPath(chatId), fiber.StatusSeeOther)
}

func (c *webController) Delete(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	chatId, ok := chatID(ctx)
	if !ok {
		return c.NotFound(ctx)
	}
	if err := container.Store.DeleteConversation(ctx.Context(), chatId); err != nil {
		return err
	}
	return ctx.Redirect(guard.HomePath, fiber.StatusSeeOther)
}

func planViews() []dto.PlanView {
	out := make([]dto.PlanView, 0, len(service.Plans))
	for priceId, plan := range service.Plans {
		out = append(out, dto.PlanView{
			PriceId:      priceId,
			Name:         plan.Name,
			Amount:       plan.Amount,
			CreditsLimit: plan.CreditsLimit,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// Settings shows the plan and credits; an account without a subscription still renders.
func (c *webController) Settings(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}

	view := dto.SettingsView{Plans: planViews()}
	sub, err := c.payments.GetSubscription(ctx.Context(), container.PrincipalID())
	switch {
	case err == nil:
		view.Subscription = sub
	case !errors.Is(err, apperror.ErrNotFound):
		return err
	}

	page := dto.PageView{Page: PageSettings, Data: view}
	if ctx.Query("payment") == "success" {
		page.Notice = "Payment received, your plan will update shortly"
	}
	return c.page(ctx, container, fiber.StatusOK, page)
}

func (c *webController) Test(ctx *fiber.Ctx) error {
	container, err := appContainer(ctx)
	if err != nil {
		return err
	}
	diag := dto.DiagnosticsView{
		SessionId:     container.Id,
		Loading:       container.Identity.Loading(),
		Conversations: len(container.Store.Conversations()),
	}
	if active, ok := container.Store.Active(); ok {
		diag.ActiveChat = active.String()
	}
	return c.page(ctx, container, fiber.StatusOK, dto.PageView{Page: PageTest, Data: diag})
}

// NotFound renders the not-found page; it is also the wildcard handler.
func (c *webController) NotFound(ctx *fiber.Ctx) error {
	view := dto.PageView{Page: PageNotFound, Theme: string(theme.Light)}
	if container, ok := serverutils.AppContainer(ctx); ok {
		return c.page(ctx, container, fiber.StatusNotFound, view)
	}
	return ctx.Status(fiber.StatusNotFound).JSON(view)
}
