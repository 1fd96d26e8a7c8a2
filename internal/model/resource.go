package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResourceKind names what a Resource represents in its domain.
type ResourceKind string

const (
	ResourceAccommodation ResourceKind = "accommodation"
	ResourceRoomType      ResourceKind = "room_type"
	ResourceRestaurant    ResourceKind = "restaurant"
	ResourceTable         ResourceKind = "table"
	ResourceDelivery      ResourceKind = "delivery"
	ResourceCatering      ResourceKind = "catering"
)

// Resource is a bookable unit owned by a tenant.  An accommodation or a
// restaurant is a top-level resource; room types and tables point at
// their parent through ParentID.  Rate and capacity changes apply to new
// bookings only.
//
// Fields:
//
//	TotalCapacity – units per slot (rooms of this type, 1 for a table,
//	                deliveries per time slot).
//	MaxOccupancy  – guests per unit (per room, seats at a table).
//	BaseRate      – price per unit per slot when no calendar override exists.
type Resource struct {
	ID            string          // resources.id
	TenantID      string          // resources.tenant_id
	ParentID      string          // resources.parent_id ("" for top-level)
	Name          string          // resources.name
	Kind          ResourceKind    // resources.kind
	CapacityUnit  string          // resources.capacity_unit (rooms, tables, deliveries, events)
	TotalCapacity int             // resources.total_capacity
	MaxOccupancy  int             // resources.max_occupancy
	BaseRate      decimal.Decimal // resources.base_rate
	Currency      string          // resources.currency
	Active        bool            // resources.is_active
	CreatedAt     time.Time       // resources.created_at
	UpdatedAt     time.Time       // resources.updated_at
}

// MenuItem is an orderable item of a restaurant.  Its price is
// snapshotted into an OrderLine when an order is created.
type MenuItem struct {
	ID         string          // menu_items.id
	TenantID   string          // menu_items.tenant_id
	ResourceID string          // menu_items.resource_id (restaurant)
	Name       string          // menu_items.name
	Price      decimal.Decimal // menu_items.price
	Currency   string          // menu_items.currency
	Available  bool            // menu_items.is_available
}
