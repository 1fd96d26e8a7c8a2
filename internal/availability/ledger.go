// Package availability implements the capacity ledger: per-unit capacity
// and price records keyed by resource, optional sub-resource and slot
// unit.  Reservations decrement every unit of a window or none of them;
// releases restore exactly what a reservation took, once.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/catalog"
	"github.com/iliyamo/reservation-engine/internal/metrics"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/scope"
	"github.com/iliyamo/reservation-engine/internal/store"
)

var tracer = otel.Tracer("github.com/iliyamo/reservation-engine/internal/availability")

// Target is a resolved reservation target: the calendar key plus the
// resource attributes the ledger and pricing need.
type Target struct {
	Key          model.SlotKey
	TenantID     string
	Capacity     int
	MaxOccupancy int
	Rate         decimal.Decimal
	Currency     string
	Active       bool
}

// Ledger answers availability queries and reserves or releases capacity.
type Ledger struct {
	catalog catalog.Catalog
	uow     store.UnitOfWork
	guard   *scope.Guard
	now     func() time.Time
	log     *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithLogger sets the ledger logger.
func WithLogger(log *zap.Logger) Option { return func(l *Ledger) { l.log = log } }

func NewLedger(cat catalog.Catalog, uow store.UnitOfWork, guard *scope.Guard, opts ...Option) *Ledger {
	l := &Ledger{catalog: cat, uow: uow, guard: guard, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Resolve looks up the resource and, when given, the sub-resource whose
// calendar the booking consumes.  The sub-resource must belong to the
// resource; capacity, occupancy, rate and currency come from it.
func (l *Ledger) Resolve(ctx context.Context, resourceID, subResourceID string) (Target, error) {
	res, err := l.catalog.Get(ctx, resourceID)
	if err != nil {
		return Target{}, err
	}
	src := res
	if subResourceID != "" {
		sub, err := l.catalog.Get(ctx, subResourceID)
		if err != nil {
			return Target{}, err
		}
		if sub.ParentID != res.ID {
			return Target{}, apperr.Invalid("sub_resource_id", "does not belong to resource")
		}
		src = sub
	}
	return Target{
		Key:          model.SlotKey{ResourceID: resourceID, SubResourceID: subResourceID},
		TenantID:     res.TenantID,
		Capacity:     src.TotalCapacity,
		MaxOccupancy: src.MaxOccupancy,
		Rate:         src.BaseRate,
		Currency:     src.Currency,
		Active:       res.Active && src.Active,
	}, nil
}

// Query reports remaining capacity and effective price for every unit of
// the window.  Units without a calendar row read as fully available at
// the base rate.  Nothing is written.
func (l *Ledger) Query(ctx context.Context, resourceID, subResourceID string, w model.Window) ([]model.SlotAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.Query")
	defer span.End()

	t, err := l.Resolve(ctx, resourceID, subResourceID)
	if err != nil {
		return nil, err
	}
	units, err := w.Units()
	if err != nil {
		return nil, apperr.Invalid("window", err.Error())
	}
	rows, err := l.uow.View().Slots().Slots(ctx, t.Key, units)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	out := make([]model.SlotAvailability, 0, len(units))
	for _, u := range units {
		row, ok := rows[u]
		if !ok {
			row = model.DefaultSlot(t.Key, u, t.Capacity)
		}
		out = append(out, view(row.Resized(t.Capacity), t.Rate))
	}
	return out, nil
}

// FreeSubResources lists the active sub-resources of resourceID that
// seat at least party guests and have capacity left on every unit of w,
// smallest first.  It answers "which tables can seat four at 19:00".
func (l *Ledger) FreeSubResources(ctx context.Context, resourceID string, w model.Window, party int) ([]model.FreeSubResource, error) {
	ctx, span := tracer.Start(ctx, "availability.FreeSubResources")
	defer span.End()
	span.SetAttributes(attribute.String("resource_id", resourceID), attribute.Int("party", party))

	if party < 1 {
		return nil, apperr.Invalid("party", "must be at least 1")
	}
	res, err := l.catalog.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !res.Active {
		return nil, apperr.ErrInactive
	}
	units, err := w.Units()
	if err != nil {
		return nil, apperr.Invalid("window", err.Error())
	}
	children, err := l.catalog.Children(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list sub-resources: %w", err)
	}

	slots := l.uow.View().Slots()
	out := []model.FreeSubResource{}
	for _, sub := range children {
		if !sub.Active || sub.MaxOccupancy < party || sub.TotalCapacity < 1 {
			continue
		}
		key := model.SlotKey{ResourceID: resourceID, SubResourceID: sub.ID}
		rows, err := slots.Slots(ctx, key, units)
		if err != nil {
			return nil, fmt.Errorf("query slots: %w", err)
		}
		left := sub.TotalCapacity
		for _, u := range units {
			row, ok := rows[u]
			if !ok {
				row = model.DefaultSlot(key, u, sub.TotalCapacity)
			}
			row = row.Resized(sub.TotalCapacity)
			if !row.IsAvailable {
				left = 0
			}
			left = min(left, row.Available)
		}
		if left < 1 {
			continue
		}
		first, ok := rows[units[0]]
		if !ok {
			first = model.DefaultSlot(key, units[0], sub.TotalCapacity)
		}
		out = append(out, model.FreeSubResource{
			ID:           sub.ID,
			Name:         sub.Name,
			Kind:         sub.Kind,
			MaxOccupancy: sub.MaxOccupancy,
			Available:    left,
			Price:        effectivePrice(first, sub.BaseRate),
			Currency:     sub.Currency,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MaxOccupancy < out[j].MaxOccupancy })
	return out, nil
}

// Reserve resolves the target and reserves qty on every unit of w in its
// own transaction.
func (l *Ledger) Reserve(ctx context.Context, resourceID, subResourceID string, w model.Window, qty int) (model.ReservationToken, error) {
	t, err := l.Resolve(ctx, resourceID, subResourceID)
	if err != nil {
		return model.ReservationToken{}, err
	}
	if !t.Active {
		return model.ReservationToken{}, apperr.ErrInactive
	}
	var tok model.ReservationToken
	err = l.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		tok, _, err = l.ReserveTx(ctx, tx, t, w, qty)
		return err
	})
	return tok, err
}

// ReserveTx reserves qty on every unit of w inside tx and returns the
// token with the effective price of each unit, in unit order.  Units are
// decremented in chronological order; the first unit that cannot take
// qty aborts with a CapacityError and the caller must roll tx back.
func (l *Ledger) ReserveTx(ctx context.Context, tx store.Tx, t Target, w model.Window, qty int) (model.ReservationToken, []decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "availability.Reserve")
	defer span.End()
	span.SetAttributes(attribute.String("resource_id", t.Key.ResourceID), attribute.Int("quantity", qty))

	if qty < 1 {
		return model.ReservationToken{}, nil, apperr.Invalid("quantity", "must be at least 1")
	}
	units, err := w.Units()
	if err != nil {
		return model.ReservationToken{}, nil, apperr.Invalid("window", err.Error())
	}

	slots := tx.Slots()
	if err := slots.Ensure(ctx, t.Key, units, t.Capacity); err != nil {
		return model.ReservationToken{}, nil, fmt.Errorf("ensure slots: %w", err)
	}
	rows, err := slots.Slots(ctx, t.Key, units)
	if err != nil {
		return model.ReservationToken{}, nil, fmt.Errorf("load slots: %w", err)
	}
	if w.Kind == model.WindowDateRange {
		if first := rows[units[0]]; first.MinStay > len(units) {
			return model.ReservationToken{}, nil, apperr.Invalid("check_out", fmt.Sprintf("minimum stay is %d nights", first.MinStay))
		}
	}

	prices := make([]decimal.Decimal, 0, len(units))
	for _, u := range units {
		ok, err := slots.Decrement(ctx, t.Key, u, qty)
		if err != nil {
			return model.ReservationToken{}, nil, fmt.Errorf("decrement %s: %w", u, err)
		}
		if !ok {
			row := rows[u]
			avail := row.Available
			if !row.IsAvailable {
				avail = 0
			}
			l.log.Debug("reservation rejected",
				zap.String("resource_id", t.Key.ResourceID),
				zap.String("unit", u.String()),
				zap.Int("requested", qty),
				zap.Int("available", avail))
			return model.ReservationToken{}, nil, &apperr.CapacityError{Unit: u.String(), Requested: qty, Available: avail}
		}
		prices = append(prices, effectivePrice(rows[u], t.Rate))
	}

	tok := model.ReservationToken{
		ID:        uuid.NewString(),
		Key:       t.Key,
		Units:     units,
		Quantity:  qty,
		CreatedAt: l.now().UTC(),
	}
	if err := tx.Holds().Create(ctx, tok); err != nil {
		return model.ReservationToken{}, nil, fmt.Errorf("persist hold: %w", err)
	}
	metrics.CapacityReserved.WithLabelValues(t.Key.ResourceID).Add(float64(qty * len(units)))
	return tok, prices, nil
}

// Release restores the capacity held by tokenID in its own transaction.
func (l *Ledger) Release(ctx context.Context, tokenID string) error {
	return l.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := l.ReleaseTx(ctx, tx, tokenID)
		return err
	})
}

// ReleaseTx restores exactly what the matching reservation decremented.
// Unknown and already released tokens are a no-op; the result reports
// whether anything was restored.
func (l *Ledger) ReleaseTx(ctx context.Context, tx store.Tx, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	tok, err := tx.Holds().Get(ctx, tokenID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("load hold: %w", err)
	}
	if tok.Released() {
		return false, nil
	}
	marked, err := tx.Holds().MarkReleased(ctx, tok.ID, l.now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark hold released: %w", err)
	}
	if !marked {
		return false, nil
	}
	for _, u := range tok.Units {
		if err := tx.Slots().Increment(ctx, tok.Key, u, tok.Quantity); err != nil {
			return false, fmt.Errorf("increment %s: %w", u, err)
		}
	}
	metrics.CapacityReleased.WithLabelValues(tok.Key.ResourceID).Add(float64(tok.Quantity * len(tok.Units)))
	return true, nil
}

// SetAvailability applies a tenant calendar edit to one unit.  Only the
// tenant owning the resource may edit, and the available count must stay
// within [0, total capacity].
func (l *Ledger) SetAvailability(ctx context.Context, actor model.Actor, resourceID, subResourceID string, unit model.SlotUnit, upd model.SlotUpdate) (model.SlotAvailability, error) {
	t, err := l.Resolve(ctx, resourceID, subResourceID)
	if err != nil {
		return model.SlotAvailability{}, err
	}
	if err := l.guard.CanEditResource(actor, t.TenantID); err != nil {
		return model.SlotAvailability{}, err
	}
	if err := validateUnit(unit); err != nil {
		return model.SlotAvailability{}, err
	}
	if upd.Available != nil && (*upd.Available < 0 || *upd.Available > t.Capacity) {
		return model.SlotAvailability{}, apperr.Invalid("available", fmt.Sprintf("must be between 0 and %d", t.Capacity))
	}
	if upd.MinStay != nil && *upd.MinStay < 1 {
		return model.SlotAvailability{}, apperr.Invalid("min_stay", "must be at least 1")
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return model.SlotAvailability{}, apperr.Invalid("price", "must not be negative")
	}

	var out model.SlotAvailability
	err = l.uow.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		units := []model.SlotUnit{unit}
		if err := tx.Slots().Ensure(ctx, t.Key, units, t.Capacity); err != nil {
			return fmt.Errorf("ensure slot: %w", err)
		}
		rows, err := tx.Slots().Slots(ctx, t.Key, units)
		if err != nil {
			return fmt.Errorf("load slot: %w", err)
		}
		row := rows[unit]
		row.Key, row.Unit = t.Key, unit
		row.Capacity = t.Capacity
		if upd.Available != nil {
			row.Available = *upd.Available
		}
		row.Available = min(row.Available, row.Capacity)
		if upd.ClearPrice {
			row.Price = nil
		} else if upd.Price != nil {
			p := *upd.Price
			row.Price = &p
		}
		if upd.MinStay != nil {
			row.MinStay = *upd.MinStay
		}
		if upd.IsAvailable != nil {
			row.IsAvailable = *upd.IsAvailable
		}
		if err := tx.Slots().Put(ctx, row); err != nil {
			return fmt.Errorf("put slot: %w", err)
		}
		out = view(row, t.Rate)
		return nil
	})
	if err != nil {
		return model.SlotAvailability{}, err
	}
	l.log.Info("availability updated",
		zap.String("resource_id", resourceID),
		zap.String("sub_resource_id", subResourceID),
		zap.String("unit", unit.String()),
		zap.String("tenant_id", actor.TenantID))
	return out, nil
}

func validateUnit(u model.SlotUnit) error {
	if _, err := model.ParseDay(u.Date); err != nil {
		return apperr.Invalid("date", "must be YYYY-MM-DD")
	}
	if u.Time != "" {
		if _, err := time.Parse(model.TimeLayout, u.Time); err != nil {
			return apperr.Invalid("time", "must be HH:MM")
		}
	}
	return nil
}

func effectivePrice(row model.AvailabilitySlot, base decimal.Decimal) decimal.Decimal {
	if row.Price != nil {
		return *row.Price
	}
	return base
}

func view(row model.AvailabilitySlot, base decimal.Decimal) model.SlotAvailability {
	return model.SlotAvailability{
		Unit:        row.Unit,
		Available:   row.Available,
		Capacity:    row.Capacity,
		Price:       effectivePrice(row, base),
		MinStay:     row.MinStay,
		IsAvailable: row.IsAvailable,
	}
}

func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }
