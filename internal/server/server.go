package server

import (
	"finsight-be/internal/bootstrap"
	"finsight-be/internal/config"
	"finsight-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger))

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Server is running", map[string]interface{}{
		"url": "http://localhost:" + s.cfg.App.Port,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	auth := serverutils.NewJwtMiddleware(c.Tokens)

	// Bearer API
	api := app.Group("/api")
	c.AuthController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api, auth)
	c.PaymentController.RegisterRoutes(api, auth)
	c.StreamHandler.RegisterRoutes(app, api, auth)
	api.Use(serverutils.APINotFound())

	// Called back by the identity session after sign-up
	c.ProvisioningController.RegisterRoutes(app, auth)

	// Browser navigation, one app container per sid cookie
	web := app.Group("", serverutils.NewAppSessionMiddleware(c.AppRegistry, c.AppFactory, c.Cookies))
	c.OAuthController.RegisterRoutes(web)
	c.WebController.RegisterRoutes(web)
	web.Use(c.WebController.NotFound)
}
