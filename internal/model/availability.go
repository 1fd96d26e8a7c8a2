package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SlotKey identifies the calendar a slot belongs to.  SubResourceID is
// empty when capacity is tracked on the resource itself.
type SlotKey struct {
	ResourceID    string
	SubResourceID string
}

// SlotUnit is the smallest unit of time the ledger tracks: a date, or a
// date plus a time of day.
type SlotUnit struct {
	Date string `json:"date"`           // "2006-01-02"
	Time string `json:"time,omitempty"` // "15:04" or "" for whole-day slots
}

func (u SlotUnit) String() string {
	if u.Time == "" {
		return u.Date
	}
	return u.Date + "T" + u.Time
}

// AvailabilitySlot is one calendar row.  Capacity is the total the unit
// can hold; Available is what is left.  A nil Price falls back to the
// resource base rate.
type AvailabilitySlot struct {
	Key         SlotKey
	Unit        SlotUnit
	Capacity    int              // availability_slots.capacity
	Available   int              // availability_slots.available
	Price       *decimal.Decimal // availability_slots.price (nullable)
	MinStay     int              // availability_slots.min_stay
	IsAvailable bool             // availability_slots.is_available
}

// DefaultSlot is the implicit row for a unit without a calendar entry:
// fully available at base rate.
func DefaultSlot(key SlotKey, unit SlotUnit, capacity int) AvailabilitySlot {
	return AvailabilitySlot{
		Key:         key,
		Unit:        unit,
		Capacity:    capacity,
		Available:   capacity,
		MinStay:     1,
		IsAvailable: true,
	}
}

// Resized brings a row to a new total capacity.  Units already taken
// stay taken, so Available moves by the capacity delta and is kept
// within [0, capacity].
func (s AvailabilitySlot) Resized(capacity int) AvailabilitySlot {
	if s.Capacity == capacity {
		return s
	}
	s.Available = max(0, min(capacity, s.Available+capacity-s.Capacity))
	s.Capacity = capacity
	return s
}

// SlotAvailability is the read model returned by availability queries.
type SlotAvailability struct {
	Unit        SlotUnit        `json:"unit"`
	Available   int             `json:"available"`
	Capacity    int             `json:"capacity"`
	Price       decimal.Decimal `json:"price"`
	MinStay     int             `json:"min_stay"`
	IsAvailable bool            `json:"is_available"`
}

// FreeSubResource is a sub-resource (a table, a room type) that can take
// a booking for a whole window.  Available is the smallest count left
// across the window; Price is the effective price of its first unit.
type FreeSubResource struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         ResourceKind    `json:"kind"`
	MaxOccupancy int             `json:"max_occupancy"`
	Available    int             `json:"available"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}

// SlotUpdate is a tenant-side calendar edit.  Nil fields are left as
// they are.
type SlotUpdate struct {
	Available   *int
	Price       *decimal.Decimal
	ClearPrice  bool
	MinStay     *int
	IsAvailable *bool
}

// ReservationToken is the handle returned by a reservation.  It records
// exactly what was decremented so a release can restore it.
type ReservationToken struct {
	ID         string
	Key        SlotKey
	Units      []SlotUnit
	Quantity   int
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

// Released reports whether the token has already been redeemed.
func (t ReservationToken) Released() bool { return t.ReleasedAt != nil }
