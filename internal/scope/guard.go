// Package scope decides whether an actor may touch a tenant-owned
// entity.  It holds no state; every decision depends only on the actor
// passed in and the entity's owning identifiers.
package scope

import (
	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// Guard enforces tenant and customer scoping.
type Guard struct{}

func NewGuard() *Guard { return &Guard{} }

// CanAccessBooking allows the requesting customer and the owning tenant.
func (Guard) CanAccessBooking(actor model.Actor, b *model.Booking) error {
	if actor.CustomerID != "" && actor.CustomerID == b.Customer.CustomerID {
		return nil
	}
	return Guard{}.CanManageBooking(actor, b)
}

// CanManageBooking allows only the owning tenant.  Adjustments, deletion
// and fulfillment progress are tenant operations.
func (Guard) CanManageBooking(actor model.Actor, b *model.Booking) error {
	if actor.TenantID != "" && actor.TenantID == b.TenantID {
		return nil
	}
	return apperr.ErrDenied
}

// CanEditResource requires an exact tenant match.  There is no customer
// path for catalog or calendar data.
func (Guard) CanEditResource(actor model.Actor, tenantID string) error {
	if actor.TenantID != "" && actor.TenantID == tenantID {
		return nil
	}
	return apperr.ErrDenied
}
