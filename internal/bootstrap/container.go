package bootstrap

import (
	"context"
	"log"
	"time"

	"finsight-be/internal/config"
	"finsight-be/internal/controller"
	"finsight-be/internal/handler"
	"finsight-be/internal/pkg/logger"
	"finsight-be/internal/pkg/mailer"
	"finsight-be/internal/pkg/serverutils"
	"finsight-be/internal/pkg/token"
	"finsight-be/internal/repository/memory"
	"finsight-be/internal/repository/unitofwork"
	"finsight-be/internal/service"
	"finsight-be/internal/websocket"
	"finsight-be/pkg/app"
	"finsight-be/pkg/events"
	"finsight-be/pkg/identity"
	"finsight-be/pkg/llm/factory"
	pktNats "finsight-be/pkg/nats"
	"finsight-be/pkg/theme"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const appResolveTimeout = 10 * time.Second

type Container struct {
	// Controllers
	AuthController         controller.IAuthController
	OAuthController        controller.IOAuthController
	ChatController         controller.IChatController
	PaymentController      controller.IPaymentController
	ProvisioningController controller.IProvisioningController
	WebController          controller.IWebController

	// Browser sessions
	AppRegistry *memory.AppRegistry
	AppFactory  serverutils.AppFactory
	Cookies     serverutils.CookieOptions
	Tokens      *token.Manager

	// Background services, started by main
	ConsumerService  service.IConsumerService
	ActivityConsumer *service.ActivityConsumer

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	tokens := token.NewManager(cfg.Auth.JwtSecret, cfg.Auth.AccessTokenTTL)

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
		sysLogger,
	)

	// 2. Event Bus (in-process change topic)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	c := &Container{Logger: sysLogger, Tokens: tokens}

	// 3. Infrastructure
	// NATS
	var eventPublisher events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		sysLogger.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go wsHub.Run(hubCtx)
	c.closers = append(c.closers, stopHub, func() { _ = rdb.Close() })

	// 4. Services
	llmProvider, err := factory.NewLLMProvider(factory.Config{
		Provider: cfg.Ai.LLMProvider,
		Model:    cfg.Ai.LLMModel,
		BaseURL:  llmBaseURL(cfg.Ai),
		APIKey:   cfg.Ai.HuggingFaceAPIKey,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	publisherService := service.NewPublisherService(cfg.App.ChangeTopic, pubSub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.ChangeTopic, wsHub, wsLogger)
	if natsSub != nil {
		c.ActivityConsumer = service.NewActivityConsumer(natsSub, wsHub, wsLogger)
	}

	authService := service.NewAuthService(uowFactory, emailService, eventPublisher, tokens, cfg.Auth.RefreshTokenTTL, sysLogger)
	provisioningService := service.NewProvisioningService(uowFactory, cfg.Billing.FreeCreditsLimit, sysLogger)
	oauthService := service.NewOAuthService(cfg.Auth, uowFactory, authService, provisioningService, sysLogger)
	chatService := service.NewChatService(uowFactory, llmProvider, eventPublisher, sysLogger)
	paymentService := service.NewPaymentService(
		uowFactory,
		service.NewSnapClient(cfg.Billing.MidtransServerKey, cfg.Billing.MidtransIsProduction),
		eventPublisher,
		cfg.Billing.MidtransServerKey,
		cfg.Billing.ManageURL,
		cfg.App.ClientURL,
		sysLogger,
	)

	// 5. Browser sessions
	c.Cookies = serverutils.CookieOptions{
		Secure: cfg.App.Environment == "production",
		MaxAge: cfg.Auth.RefreshTokenTTL,
	}
	c.AppRegistry = memory.NewAppRegistry(cfg.App.SessionIdleTimeout)
	provisioner := identity.NewHTTPProvisioner(cfg.Auth.ProvisioningURL)
	deps := app.Deps{
		Backend:     chatService,
		Completer:   llmProvider,
		Provisioner: provisioner,
		Logger:      sysLogger,
	}
	c.AppFactory = func(ctx *fiber.Ctx, sessionID string) *app.Container {
		adapter := service.NewIdentityAdapter(authService, oauthService, ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
		provider := identity.NewLocalProvider(
			adapter,
			ctx.Cookies(serverutils.AccessTokenCookie),
			ctx.Cookies(serverutils.RefreshTokenCookie),
		)

		resolveCtx, cancel := context.WithTimeout(ctx.UserContext(), appResolveTimeout)
		defer cancel()
		container := app.New(resolveCtx, sessionID, provider, ctx.Cookies(theme.CookieName), deps)
		service.ForwardChanges(container, publisherService, sysLogger)
		return container
	}

	// 6. Controllers & Handlers
	c.AuthController = controller.NewAuthController(authService, sysLogger)
	c.OAuthController = controller.NewOAuthController(oauthService, c.Cookies, sysLogger)
	c.ChatController = controller.NewChatController(chatService)
	c.PaymentController = controller.NewPaymentController(paymentService, sysLogger)
	c.ProvisioningController = controller.NewProvisioningController(provisioningService)
	c.WebController = controller.NewWebController(paymentService, c.Cookies, sysLogger)
	c.StreamHandler = handler.NewStreamHandler(wsHub, tokens, wsLogger)
	c.WebSocketHub = wsHub

	return c
}

func llmBaseURL(cfg config.AIConfig) string {
	if cfg.LLMProvider == "huggingface" {
		return cfg.HuggingFaceBaseURL
	}
	return cfg.OllamaBaseURL
}

// Close drops every browser session and releases the bus connections.
func (c *Container) Close() {
	if c.AppRegistry != nil {
		c.AppRegistry.Flush()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
