package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// ActorFrom returns the identity stored by JWTAuth, or the zero Actor on
// unauthenticated routes.
func ActorFrom(c echo.Context) model.Actor {
	a, _ := c.Get(ActorKey).(model.Actor)
	return a
}

// userID identifies the caller for rate limiting.  Tenant staff without a
// customer id are keyed by tenant.
func userID(c echo.Context) string {
	a := ActorFrom(c)
	switch {
	case a.CustomerID != "":
		return a.CustomerID
	case a.TenantID != "":
		return "tenant:" + a.TenantID
	}
	return "anon"
}
