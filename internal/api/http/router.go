package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/raffle-service/internal/api/http/handlers"
	"github.com/spec-kit/raffle-service/internal/auth"
	"github.com/spec-kit/raffle-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Raffles        *handlers.RafflesHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	AdminAPIToken  string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAnyUser())
	users.Get("/me", cfg.Users.Me)
	users.Post("/me/topup", cfg.Users.TopUp)

	raffles := app.Group("/raffles")
	raffles.Get("/", cfg.Raffles.List)
	raffles.Get("/sample", cfg.Raffles.Sample)
	raffles.Get("/mine", cfg.AuthMiddleware.Handle, auth.RequireAnyUser(), cfg.Raffles.MyRaffles)
	raffles.Get("/:id", cfg.Raffles.Get)
	raffles.Get("/:id/history", cfg.Raffles.History)

	raffles.Post("/", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleSeller), cfg.Raffles.Create)
	raffles.Post("/:id/entries", cfg.AuthMiddleware.Handle, auth.RequireAnyUser(), cfg.Raffles.Enter)

	sellerActions := raffles.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleSeller))
	sellerActions.Post("/:id/confirm", cfg.Raffles.Confirm)
	sellerActions.Post("/:id/cancel", cfg.Raffles.Cancel)
	sellerActions.Post("/:id/end", cfg.Raffles.EndNotMet)
	sellerActions.Post("/:id/extend", cfg.Raffles.Extend)

	sellers := app.Group("/sellers", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleSeller))
	sellers.Get("/me/tickets-sold", cfg.Raffles.TicketsSold)

	admin := app.Group("/admin", auth.RequireAdminToken(cfg.AdminAPIToken))
	admin.Post("/sweep", cfg.Admin.Sweep)
}
