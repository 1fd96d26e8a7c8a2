// Package store defines the persistence contracts of the reservation
// engine.  A UnitOfWork hands out a Tx whose repositories all act inside
// one transactional boundary, so that reserving capacity and persisting
// the booking that consumes it commit or roll back together.
package store

import (
	"context"
	"time"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// UnitOfWork starts transactional and read-only views of the store.
type UnitOfWork interface {
	// InTx runs fn inside a transaction.  A non-nil error from fn rolls
	// back every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View returns a non-transactional view for plain reads.
	View() Tx
}

// Tx groups the repositories bound to one transaction.
type Tx interface {
	Slots() SlotStore
	Holds() HoldStore
	Bookings() BookingStore
}

// SlotStore persists availability calendar rows.
type SlotStore interface {
	// Slots returns stored rows for the given units.  Units without a
	// calendar row are absent from the map.
	Slots(ctx context.Context, key model.SlotKey, units []model.SlotUnit) (map[model.SlotUnit]model.AvailabilitySlot, error)
	// Ensure creates default rows (available = capacity) for units that
	// have none and resizes existing rows to capacity, keeping the units
	// already taken.
	Ensure(ctx context.Context, key model.SlotKey, units []model.SlotUnit, capacity int) error
	// Decrement subtracts qty from the unit when it is available and has
	// at least qty left.  It reports whether the row was updated.
	Decrement(ctx context.Context, key model.SlotKey, unit model.SlotUnit, qty int) (bool, error)
	// Increment adds qty back, never exceeding the row capacity.
	Increment(ctx context.Context, key model.SlotKey, unit model.SlotUnit, qty int) error
	// Put writes a full row, creating it when missing.
	Put(ctx context.Context, slot model.AvailabilitySlot) error
}

// HoldStore persists reservation tokens.
type HoldStore interface {
	Create(ctx context.Context, tok model.ReservationToken) error
	// Get returns apperr.ErrNotFound for unknown tokens.
	Get(ctx context.Context, id string) (*model.ReservationToken, error)
	// MarkReleased stamps the token as released.  It reports false when
	// the token was already released or does not exist.
	MarkReleased(ctx context.Context, id string, at time.Time) (bool, error)
}

// BookingFilter narrows ListBookings.  Empty fields do not filter.
// CustomerID and TenantID are OR-ed: a booking matches when either
// identifier matches.
type BookingFilter struct {
	CustomerID string
	TenantID   string
	ResourceID string
	Status     model.Status
	Kind       model.Kind
	Limit      int
	Offset     int
}

// BookingStore persists bookings, their order lines and status history.
type BookingStore interface {
	// Create inserts the booking with its lines and history.  It returns
	// apperr.ErrDuplicateReference when the reference is taken.
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	// GetForUpdate loads the booking and locks it until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*model.Booking, error)
	GetByReference(ctx context.Context, reference string) (*model.Booking, error)
	List(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	// Update writes status, payment, financials, notes and token; it
	// does not touch lines or history.
	Update(ctx context.Context, b *model.Booking) error
	AppendHistory(ctx context.Context, bookingID string, change model.StatusChange) error
	Delete(ctx context.Context, id string) error
}
