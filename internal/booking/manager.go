// Package booking owns the booking lifecycle.  The Manager resolves
// resources through the catalog, reserves capacity on the availability
// ledger, prices the booking and persists it, all inside one store
// transaction, then drives every later status change.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/availability"
	"github.com/iliyamo/reservation-engine/internal/catalog"
	"github.com/iliyamo/reservation-engine/internal/metrics"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/pricing"
	"github.com/iliyamo/reservation-engine/internal/queue"
	"github.com/iliyamo/reservation-engine/internal/scope"
	"github.com/iliyamo/reservation-engine/internal/store"
)

var tracer = otel.Tracer("github.com/iliyamo/reservation-engine/internal/booking")

// Publisher hands lifecycle events to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// Deps are the collaborators of a Manager.  Events, Logger, Clock and
// NewReference are optional.
type Deps struct {
	Catalog      catalog.Catalog
	Store        store.UnitOfWork
	Ledger       *availability.Ledger
	Pricing      *pricing.Calculator
	Guard        *scope.Guard
	Events       Publisher
	Logger       *zap.Logger
	Clock        func() time.Time
	NewReference ReferenceFunc
}

// Manager implements the booking operations.
type Manager struct {
	catalog catalog.Catalog
	uow     store.UnitOfWork
	ledger  *availability.Ledger
	pricing *pricing.Calculator
	guard   *scope.Guard
	events  Publisher
	log     *zap.Logger
	now     func() time.Time
	newRef  ReferenceFunc
}

func NewManager(d Deps) *Manager {
	m := &Manager{
		catalog: d.Catalog,
		uow:     d.Store,
		ledger:  d.Ledger,
		pricing: d.Pricing,
		guard:   d.Guard,
		events:  d.Events,
		log:     d.Logger,
		now:     d.Clock,
		newRef:  d.NewReference,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newRef == nil {
		m.newRef = NewReference
	}
	if m.guard == nil {
		m.guard = scope.NewGuard()
	}
	return m
}

// ItemRequest is one requested order line.
type ItemRequest struct {
	ItemID         string
	Quantity       int
	Instructions   string
	Customizations map[string]any
}

// CreateRequest carries everything needed to create a booking.  Rooms is
// the number of units a stay reserves; Guests is the headcount (party
// size for dining).
type CreateRequest struct {
	Kind          model.Kind
	ResourceID    string
	SubResourceID string
	Customer      model.Party
	Window        model.Window
	Guests        int
	Rooms         int
	Delivery      *model.DeliveryDetails
	Catering      *model.CateringDetails
	Items         []ItemRequest
	Adjustments   pricing.Adjustments
	Currency      string
	Notes         string
}

// CreateBooking resolves the resource, validates the request for its
// kind, reserves capacity, prices the booking, assigns a reference and
// persists it as pending.  Reservation, pricing and persistence share one
// transaction: any failure leaves no capacity consumed.
func (m *Manager) CreateBooking(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(req.Kind)), attribute.String("resource_id", req.ResourceID))

	b, err := m.create(ctx, actor, req)
	if err != nil {
		metrics.RecordRejection("create", reason(err))
		m.log.Debug("booking rejected",
			zap.String("kind", string(req.Kind)),
			zap.String("resource_id", req.ResourceID),
			zap.Error(err))
		return nil, err
	}
	metrics.RecordTransition(string(b.Kind), string(b.Status))
	m.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("reference", b.Reference),
		zap.String("kind", string(b.Kind)),
		zap.String("total", b.Financials.Total.StringFixed(2)))
	m.publish(ctx, queue.EventCreated, b)
	return b, nil
}

func (m *Manager) create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Booking, error) {
	if _, err := model.ParseKind(string(req.Kind)); err != nil {
		return nil, apperr.Invalid("kind", err.Error())
	}
	customer := req.Customer
	if actor.CustomerID != "" {
		customer.CustomerID = actor.CustomerID
	}
	if customer.CustomerID == "" {
		return nil, apperr.Invalid("customer_id", "is required")
	}

	// (1) resource
	target, err := m.ledger.Resolve(ctx, req.ResourceID, req.SubResourceID)
	if err != nil {
		return nil, err
	}
	if !target.Active {
		return nil, apperr.ErrInactive
	}
	if req.Currency != "" && req.Currency != target.Currency {
		return nil, apperr.Invalid("currency", fmt.Sprintf("%s does not match resource currency %s", req.Currency, target.Currency))
	}

	// (2) window and kind-specific fields
	qty, err := m.validate(req, target)
	if err != nil {
		return nil, err
	}
	lines, err := m.orderLines(ctx, req, target)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	b := &model.Booking{
		ID:            uuid.NewString(),
		Kind:          req.Kind,
		TenantID:      target.TenantID,
		ResourceID:    req.ResourceID,
		SubResourceID: req.SubResourceID,
		Customer:      customer,
		Window:        req.Window,
		Guests:        req.Guests,
		Quantity:      qty,
		Delivery:      req.Delivery,
		Catering:      req.Catering,
		Lines:         lines,
		Status:        model.StatusPending,
		Payment:       model.Payment{Status: "unpaid"},
		Notes:         req.Notes,
		History:       []model.StatusChange{{Status: model.StatusPending, At: now}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = m.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// (3) capacity
		tok, prices, err := m.ledger.ReserveTx(ctx, tx, target, req.Window, qty)
		if err != nil {
			return err
		}
		b.ReservationToken = tok.ID

		// (4) price
		if req.Kind == model.KindStay {
			b.Financials, err = m.pricing.StayNightly(prices, qty, req.Adjustments, target.Currency)
		} else {
			b.Financials, err = m.pricing.Order(lines, req.Adjustments, target.Currency)
		}
		if err != nil {
			return err
		}

		// (5, 6) reference and persist
		return m.insert(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// insert assigns a fresh reference and stores b, retrying on collision.
func (m *Manager) insert(ctx context.Context, tx store.Tx, b *model.Booking) error {
	prefix := b.Kind.ReferencePrefix()
	for attempt := 1; attempt <= maxReferenceAttempt; attempt++ {
		ref, err := m.newRef(prefix, b.TenantID)
		if err != nil {
			return fmt.Errorf("generate reference: %w", err)
		}
		b.Reference = ref
		err = tx.Bookings().Create(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrDuplicateReference) {
			return fmt.Errorf("insert booking: %w", err)
		}
		metrics.ReferenceCollisions.Inc()
		m.log.Warn("booking reference collision", zap.String("reference", ref), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("insert booking: %w after %d attempts", apperr.ErrDuplicateReference, maxReferenceAttempt)
}

// validate checks the window and kind-specific fields and returns the
// quantity to reserve.
func (m *Manager) validate(req CreateRequest, t availability.Target) (int, error) {
	w := req.Window
	if err := w.Validate(); err != nil {
		return 0, apperr.Invalid("window", err.Error())
	}
	now := m.now().UTC()
	today := model.Day(now)

	if req.Kind == model.KindStay {
		if w.Kind != model.WindowDateRange {
			return 0, apperr.Invalid("window", "stays need check-in and check-out dates")
		}
		if w.CheckIn.Before(today) {
			return 0, apperr.Invalid("check_in", "cannot be in the past")
		}
		rooms := req.Rooms
		if rooms == 0 {
			rooms = 1
		}
		if rooms < 1 {
			return 0, apperr.Invalid("rooms", "must be at least 1")
		}
		if req.Guests < 1 {
			return 0, apperr.Invalid("guests", "must be at least 1")
		}
		if t.MaxOccupancy > 0 && req.Guests > t.MaxOccupancy*rooms {
			return 0, apperr.Invalid("guests", fmt.Sprintf("exceeds occupancy of %d per room", t.MaxOccupancy))
		}
		return rooms, nil
	}

	if w.Kind != model.WindowInstant {
		return 0, apperr.Invalid("window", "dining bookings need a date")
	}
	if req.Kind != model.KindCatering && w.Time == "" {
		return 0, apperr.Invalid("time", "is required")
	}
	if w.Time == "" {
		if w.Date.Before(today) {
			return 0, apperr.Invalid("date", "cannot be in the past")
		}
	} else if w.Start().Before(now) {
		return 0, apperr.Invalid("date", "cannot be in the past")
	}
	if req.Guests < 0 {
		return 0, apperr.Invalid("guests", "must not be negative")
	}

	switch req.Kind {
	case model.KindReservation:
		if req.Guests < 1 {
			return 0, apperr.Invalid("guests", "party size must be at least 1")
		}
		if t.MaxOccupancy > 0 && req.Guests > t.MaxOccupancy {
			return 0, apperr.Invalid("guests", fmt.Sprintf("exceeds table capacity of %d", t.MaxOccupancy))
		}
	case model.KindDelivery:
		if req.Delivery == nil || req.Delivery.Address == "" {
			return 0, apperr.Invalid("delivery.address", "is required for delivery orders")
		}
		if len(req.Items) == 0 {
			return 0, apperr.Invalid("items", "delivery orders need at least one item")
		}
	case model.KindTakeout:
		if len(req.Items) == 0 {
			return 0, apperr.Invalid("items", "takeout orders need at least one item")
		}
	case model.KindCatering:
		if req.Catering == nil || req.Catering.Location == "" {
			return 0, apperr.Invalid("catering.location", "is required for catering")
		}
	}
	return 1, nil
}

// orderLines resolves requested items and freezes their prices.
func (m *Manager) orderLines(ctx context.Context, req CreateRequest, t availability.Target) ([]model.OrderLine, error) {
	if len(req.Items) == 0 {
		return nil, nil
	}
	if req.Kind == model.KindStay {
		return nil, apperr.Invalid("items", "stays do not take order items")
	}
	lines := make([]model.OrderLine, 0, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Quantity < 1 {
			return nil, apperr.Invalid(field+".quantity", "must be at least 1")
		}
		item, err := m.catalog.GetItem(ctx, it.ItemID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalid(field+".item_id", "unknown item")
			}
			return nil, err
		}
		if item.ResourceID != req.ResourceID {
			return nil, apperr.Invalid(field+".item_id", "item is not offered by this resource")
		}
		if !item.Available {
			return nil, apperr.Invalid(field+".item_id", "item is not available")
		}
		if item.Currency != t.Currency {
			return nil, apperr.Invalid(field+".currency", "item currency does not match resource currency")
		}
		line := pricing.NewLine(*item, it.Quantity)
		line.Instructions = it.Instructions
		line.Customizations = it.Customizations
		lines = append(lines, line)
	}
	return lines, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (m *Manager) ConfirmBooking(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	return m.transition(ctx, actor, id, evConfirm, "", queue.EventConfirmed)
}

// AdvanceBooking moves a booking forward along its kind's fulfillment
// chain.  Forward skips are allowed; backward moves never are.
func (m *Manager) AdvanceBooking(ctx context.Context, actor model.Actor, id string, target model.Status) (*model.Booking, error) {
	return m.transition(ctx, actor, id, evAdvance, target, queue.EventAdvanced)
}

// CancelBooking cancels a booking that is not finished and releases its
// capacity.
func (m *Manager) CancelBooking(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	return m.transition(ctx, actor, id, evCancel, "", queue.EventCancelled)
}

// MarkNoShow records that the customer never turned up and releases the
// capacity.
func (m *Manager) MarkNoShow(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	return m.transition(ctx, actor, id, evNoShow, "", queue.EventNoShow)
}

func (m *Manager) authorizeEvent(actor model.Actor, b *model.Booking, ev event) error {
	switch ev {
	case evAdvance, evNoShow:
		return m.guard.CanManageBooking(actor, b)
	default:
		return m.guard.CanAccessBooking(actor, b)
	}
}

func (m *Manager) transition(ctx context.Context, actor model.Actor, id string, ev event, target model.Status, eventName string) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking."+string(ev))
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", id))

	var b *model.Booking
	err := m.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := m.authorizeEvent(actor, b, ev); err != nil {
			return err
		}
		to, err := nextStatus(b.Kind, b.Status, ev, target)
		if err != nil {
			return err
		}
		if releases(to) {
			if _, err := m.ledger.ReleaseTx(ctx, tx, b.ReservationToken); err != nil {
				return err
			}
		}
		now := m.now().UTC()
		b.Status = to
		b.UpdatedAt = now
		change := model.StatusChange{Status: to, At: now}
		b.History = append(b.History, change)
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if err := tx.Bookings().AppendHistory(ctx, b.ID, change); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordRejection(string(ev), reason(err))
		return nil, err
	}
	metrics.RecordTransition(string(b.Kind), string(b.Status))
	m.log.Info("booking transitioned",
		zap.String("booking_id", b.ID),
		zap.String("reference", b.Reference),
		zap.String("event", string(ev)),
		zap.String("status", string(b.Status)))
	m.publish(ctx, eventName, b)
	return b, nil
}

// RecordPayment stores the payment reference and status supplied by the
// payment collaborator.  The engine does not interpret either value.
func (m *Manager) RecordPayment(ctx context.Context, actor model.Actor, id, reference, status string) (*model.Booking, error) {
	if status == "" {
		return nil, apperr.Invalid("payment_status", "is required")
	}
	return m.update(ctx, id, m.guard.CanAccessBooking, actor, func(b *model.Booking) error {
		b.Payment = model.Payment{Reference: reference, Status: status}
		return nil
	})
}

// AdjustBooking replaces taxes, fees, tip and discount and recomputes the
// total.  Only the owning tenant may adjust, and only while the booking
// is not terminal.
func (m *Manager) AdjustBooking(ctx context.Context, actor model.Actor, id string, adj pricing.Adjustments) (*model.Booking, error) {
	return m.update(ctx, id, m.guard.CanManageBooking, actor, func(b *model.Booking) error {
		if b.Status.IsTerminal() {
			return &apperr.TransitionError{From: string(b.Status), To: "adjusted"}
		}
		f, err := m.pricing.Reprice(b.Financials, adj)
		if err != nil {
			return err
		}
		b.Financials = f
		return nil
	})
}

func (m *Manager) update(ctx context.Context, id string, authorize func(model.Actor, *model.Booking) error, actor model.Actor, apply func(*model.Booking) error) (*model.Booking, error) {
	var b *model.Booking
	err := m.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, b); err != nil {
			return err
		}
		if err := apply(b); err != nil {
			return err
		}
		b.UpdatedAt = m.now().UTC()
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBooking removes a booking outright.  Capacity still held is
// released first; a finished booking consumed its capacity and keeps it
// consumed.
func (m *Manager) DeleteBooking(ctx context.Context, actor model.Actor, id string) error {
	var b *model.Booking
	err := m.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.Bookings().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := m.guard.CanManageBooking(actor, b); err != nil {
			return err
		}
		if !b.Status.IsFinished() {
			if _, err := m.ledger.ReleaseTx(ctx, tx, b.ReservationToken); err != nil {
				return err
			}
		}
		if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
			return fmt.Errorf("delete booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.log.Info("booking deleted", zap.String("booking_id", b.ID), zap.String("reference", b.Reference))
	m.publish(ctx, queue.EventDeleted, b)
	return nil
}

// GetBooking returns a booking visible to actor.  Bookings the actor may
// not see read as not found.
func (m *Manager) GetBooking(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	b, err := m.uow.View().Bookings().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.visible(actor, b)
}

// GetBookingByReference is GetBooking keyed by the public reference.
func (m *Manager) GetBookingByReference(ctx context.Context, actor model.Actor, reference string) (*model.Booking, error) {
	b, err := m.uow.View().Bookings().GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return m.visible(actor, b)
}

func (m *Manager) visible(actor model.Actor, b *model.Booking) (*model.Booking, error) {
	if err := m.guard.CanAccessBooking(actor, b); err != nil {
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

// ListFilter narrows ListBookings beyond the actor's own scope.
type ListFilter struct {
	ResourceID string
	Status     model.Status
	Kind       model.Kind
	Limit      int
	Offset     int
}

// ListBookings returns the bookings the actor requested or owns, newest
// first.
func (m *Manager) ListBookings(ctx context.Context, actor model.Actor, f ListFilter) ([]model.Booking, error) {
	if actor.IsZero() {
		return nil, apperr.ErrDenied
	}
	return m.uow.View().Bookings().List(ctx, store.BookingFilter{
		CustomerID: actor.CustomerID,
		TenantID:   actor.TenantID,
		ResourceID: f.ResourceID,
		Status:     f.Status,
		Kind:       f.Kind,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
}

// QueryAvailability reports remaining capacity per unit of the window.
func (m *Manager) QueryAvailability(ctx context.Context, resourceID, subResourceID string, w model.Window) ([]model.SlotAvailability, error) {
	return m.ledger.Query(ctx, resourceID, subResourceID, w)
}

// publish sends the event after commit.  Broker failures are logged and
// never undo the committed change.
func (m *Manager) publish(ctx context.Context, name string, b *model.Booking) {
	if m.events == nil {
		return
	}
	ev := queue.NewBookingEvent(name, b, m.now())
	if err := m.events.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(name, "error").Inc()
		m.log.Warn("publish booking event failed",
			zap.String("event", name),
			zap.String("booking_id", b.ID),
			zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(name, "ok").Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrInactive):
		return "inactive"
	case errors.Is(err, apperr.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperr.ErrDenied):
		return "denied"
	default:
		return "internal"
	}
}
