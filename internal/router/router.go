// Package router registers the HTTP routes of the reservation engine.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/reservation-engine/internal/config"
	"github.com/iliyamo/reservation-engine/internal/handler"
	"github.com/iliyamo/reservation-engine/internal/logger"
	"github.com/iliyamo/reservation-engine/internal/metrics"
	"github.com/iliyamo/reservation-engine/internal/middleware"
	"github.com/iliyamo/reservation-engine/internal/obs"
)

// Deps are what the routes need.  Redis may be nil; rate limiting and
// response caching are then disabled.
type Deps struct {
	Config       config.App
	Redis        *redis.Client
	Bookings     *handler.BookingHandler
	Availability *handler.AvailabilityHandler
	Resources    *handler.ResourceHandler
	Ready        echo.HandlerFunc
}

// New builds the Echo server with the shared middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(obs.Middleware)
	e.Use(logger.Middleware)
	e.Use(metrics.Middleware)

	RegisterRoutes(e, d.Ready)
	RegisterResources(e, d)
	RegisterAvailability(e, d)
	RegisterBookings(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterResources registers catalog routes.  Reads are public and
// served from the response cache; a successful edit purges it.
func RegisterResources(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis)

	e.GET("/v1/resources/:id", d.Resources.Get,
		limit, middleware.NewRedisCache(d.Config.Cache, d.Redis))

	e.PUT("/v1/resources/:id", d.Resources.Update,
		middleware.JWTAuth(d.Config.JWTSecret), middleware.RequireTenant,
		middleware.RequireRole(middleware.RoleOwner), limit,
		middleware.NewCachePurge(d.Config.Cache, d.Redis))
}

// RegisterAvailability registers calendar routes.  Reads are public and
// never cached: remaining capacity changes with every booking.  Edits
// need a tenant token carrying the owner or staff role.
func RegisterAvailability(e *echo.Echo, d Deps) {
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis)

	e.GET("/v1/resources/:id/availability", d.Availability.Query, limit)
	e.GET("/v1/resources/:id/availability/free", d.Availability.Free, limit)

	e.PUT("/v1/resources/:id/availability", d.Availability.Set,
		middleware.JWTAuth(d.Config.JWTSecret), middleware.RequireTenant,
		middleware.RequireRole(middleware.RoleOwner, middleware.RoleStaff), limit)
}

// RegisterBookings registers the booking lifecycle under /v1/bookings.
// Authorization beyond a valid token is decided per booking by the
// engine.
func RegisterBookings(e *echo.Echo, d Deps) {
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(d.Config.JWTSecret),
		middleware.NewTokenBucket(d.Config.RateLimit, d.Redis),
	)
	h := d.Bookings
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/by-reference/:reference", h.GetByReference)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete, middleware.RequireTenant)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/no-show", h.NoShow, middleware.RequireTenant)
	g.POST("/:id/advance", h.Advance, middleware.RequireTenant)
	g.POST("/:id/adjust", h.Adjust, middleware.RequireTenant)
	g.POST("/:id/payment", h.RecordPayment)
}
