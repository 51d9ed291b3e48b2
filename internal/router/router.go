package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campushelp/helpdesk-api/internal/config"
	"github.com/campushelp/helpdesk-api/internal/handler"
	"github.com/campushelp/helpdesk-api/internal/middleware"
	"github.com/campushelp/helpdesk-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	TicketHandler       *handler.TicketHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	UserHandler         *handler.UserHandler
	SettingHandler      *handler.SettingHandler
	UploadHandler       *handler.UploadHandler

	JWTMiddleware         fiber.Handler
	SessionMiddleware     fiber.Handler
	MaintenanceMiddleware fiber.Handler
	AdminMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Fall back to no-ops so the route table can be exercised in isolation.
	passthrough := func(c *fiber.Ctx) error { return c.Next() }
	jwt := deps.JWTMiddleware
	if jwt == nil {
		jwt = passthrough
	}
	session := deps.SessionMiddleware
	if session == nil {
		session = passthrough
	}
	maintenance := deps.MaintenanceMiddleware
	if maintenance == nil {
		maintenance = passthrough
	}
	admin := deps.AdminMiddleware
	if admin == nil {
		admin = passthrough
	}

	if deps.AuthHandler != nil {
		// Credential guessing is slowed down before it ever reaches bcrypt.
		public := api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute))
		deps.AuthHandler.RegisterPublic(public)

		protected := api.Group("/auth", jwt, session)
		deps.AuthHandler.RegisterProtected(protected)
	}

	if deps.TicketHandler != nil {
		tickets := api.Group("/tickets", jwt, session, maintenance)
		deps.TicketHandler.Register(tickets)
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwt, session, maintenance)
		deps.ChatHandler.Register(chat)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwt, session)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", jwt, session, maintenance)
		deps.UploadHandler.Register(uploads)
	}

	// The role claim gate is cheap; the admin middleware then re-validates
	// the stored account so demoted admins are cut off immediately.
	if deps.UserHandler != nil {
		users := api.Group("/admin/users", jwt, session, middleware.RequireRole("admin"), admin)
		deps.UserHandler.Register(users)
	}

	if deps.SettingHandler != nil {
		settings := api.Group("/admin/settings", jwt, session, middleware.RequireRole("admin"), admin)
		deps.SettingHandler.Register(settings)
	}
}
