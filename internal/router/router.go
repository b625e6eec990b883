// Package router maps HTTP routes to handlers and applies middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/GeorgesCH/studio-class-scheduler/internal/config"
	"github.com/GeorgesCH/studio-class-scheduler/internal/handler"
	"github.com/GeorgesCH/studio-class-scheduler/internal/middleware"
	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
)

// RegisterRoutes registers routes that carry no authentication, currently
// just the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints. Register, login, refresh and
// logout live under /v1/auth and need no token; /v1/me requires a valid
// access token of any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleCustomer, model.RoleInstructor, model.RoleStudio))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints. When a
// Redis client is available the whole group sits behind the response cache
// and the rate limiter.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	g.GET("/classes", p.GetClasses)
	g.GET("/classes/:id/schedule", p.GetClassSchedule)
	g.GET("/schedule", p.GetSchedule)
}

// RegisterStudio registers the studio management surface: templates, the
// scheduling wizard, series edits, cancellation review and refund policies.
// Every route requires the STUDIO role.
func RegisterStudio(e *echo.Echo, jwtSecret string,
	t *handler.TemplateHandler, s *handler.ScheduleHandler,
	pol *handler.PolicyHandler, ca *handler.CancellationHandler) {

	g := e.Group("/v1/studio")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleStudio))

	g.POST("/templates", t.Create)
	g.GET("/templates", t.List)
	g.GET("/templates/:id", t.Get)
	g.PUT("/templates/:id", t.Update)
	g.DELETE("/templates/:id", t.Delete)

	g.POST("/instances", s.CreateInstance)
	g.POST("/instances/preview", s.PreviewInstance)
	g.POST("/instances/:id/expand", s.Rematerialize)
	g.PATCH("/occurrences/:id", s.EditOccurrence)
	g.POST("/occurrences/:id/cancel", ca.CancelOccurrence)

	g.POST("/policies", pol.Create)
	g.GET("/policies", pol.List)
	g.GET("/policies/:id", pol.Get)

	g.POST("/cancellations/:id/approve", ca.Approve)
	g.POST("/cancellations/:id/reject", ca.Reject)
	g.POST("/cancellations/:id/process", ca.Process)
	g.GET("/cancellations/reconciliation", ca.Reconciliation)
}

// RegisterCustomer registers the booking surface for authenticated
// customers: reserving seats, confirming waitlist promotions, requesting
// cancellations and the credit wallet.
func RegisterCustomer(e *echo.Echo, jwtSecret string,
	b *handler.BookingHandler, ca *handler.CancellationHandler, w *handler.WalletHandler) {

	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleCustomer, model.RoleInstructor, model.RoleStudio))

	g.POST("/occurrences/:id/book", b.Book)
	g.POST("/waitlist/:id/confirm", b.ConfirmPromotion)
	g.GET("/me/registrations", b.MyRegistrations)

	g.POST("/registrations/:id/cancel", ca.Submit)
	g.GET("/cancellations/:id", ca.Get)

	g.GET("/me/wallet", w.Balance)
	g.GET("/me/wallet/transactions", w.History)
}
