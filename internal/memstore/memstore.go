// Package memstore is an in-process implementation of the catalog and
// store contracts.  A single mutex serializes transactions; a failed
// transaction restores the snapshot taken when it began.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/store"
)

type state struct {
	resources map[string]model.Resource
	items     map[string]model.MenuItem
	slots     map[model.SlotKey]map[model.SlotUnit]model.AvailabilitySlot
	holds     map[string]model.ReservationToken
	bookings  map[string]model.Booking
	refs      map[string]string // reference -> booking id
	lineSeq   uint64
}

func newState() *state {
	return &state{
		resources: map[string]model.Resource{},
		items:     map[string]model.MenuItem{},
		slots:     map[model.SlotKey]map[model.SlotUnit]model.AvailabilitySlot{},
		holds:     map[string]model.ReservationToken{},
		bookings:  map[string]model.Booking{},
		refs:      map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.lineSeq = s.lineSeq
	for k, v := range s.resources {
		c.resources[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, units := range s.slots {
		m := make(map[model.SlotUnit]model.AvailabilitySlot, len(units))
		for u, sl := range units {
			m[u] = sl
		}
		c.slots[k] = m
	}
	for k, v := range s.holds {
		c.holds[k] = cloneToken(v)
	}
	for k, v := range s.bookings {
		c.bookings[k] = cloneBooking(v)
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	return c
}

// Store holds all state in memory.  The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var (
	_ store.UnitOfWork = (*Store)(nil)
)

// InTx runs fn while holding the store lock.  Any error from fn restores
// the state as it was before fn ran.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(ctx, &txView{s: s, locked: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// View returns a view whose calls each take the lock for their duration.
func (s *Store) View() store.Tx {
	return &txView{s: s}
}

// PutResource adds or replaces a catalog resource.
func (s *Store) PutResource(r model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.resources[r.ID] = r
}

// PutItem adds or replaces a menu item.
func (s *Store) PutItem(it model.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.items[it.ID] = it
}

// Get implements catalog.Catalog.
func (s *Store) Get(_ context.Context, resourceID string) (*model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.resources[resourceID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &r, nil
}

// IsActive implements catalog.Catalog.
func (s *Store) IsActive(ctx context.Context, resourceID string) (bool, error) {
	r, err := s.Get(ctx, resourceID)
	if err != nil {
		return false, err
	}
	return r.Active, nil
}

// Children implements catalog.Catalog.
func (s *Store) Children(_ context.Context, parentID string) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Resource
	for _, r := range s.st.resources {
		if r.ParentID == parentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateResource implements catalog.Editor.
func (s *Store) UpdateResource(_ context.Context, r model.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.resources[r.ID]; !ok {
		return apperr.ErrNotFound
	}
	s.st.resources[r.ID] = r
	return nil
}

// GetItem implements catalog.Catalog.
func (s *Store) GetItem(_ context.Context, itemID string) (*model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.st.items[itemID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &it, nil
}

type txView struct {
	s      *Store
	locked bool
}

func (t *txView) Slots() store.SlotStore       { return slotRepo{t} }
func (t *txView) Holds() store.HoldStore       { return holdRepo{t} }
func (t *txView) Bookings() store.BookingStore { return bookingRepo{t} }

// with runs fn against the current state, taking the lock unless the view
// already runs inside InTx.
func (t *txView) with(fn func(st *state) error) error {
	if !t.locked {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
	}
	return fn(t.s.st)
}

type slotRepo struct{ t *txView }

func (r slotRepo) Slots(_ context.Context, key model.SlotKey, units []model.SlotUnit) (map[model.SlotUnit]model.AvailabilitySlot, error) {
	out := make(map[model.SlotUnit]model.AvailabilitySlot, len(units))
	err := r.t.with(func(st *state) error {
		rows := st.slots[key]
		for _, u := range units {
			if sl, ok := rows[u]; ok {
				out[u] = sl
			}
		}
		return nil
	})
	return out, err
}

func (r slotRepo) Ensure(_ context.Context, key model.SlotKey, units []model.SlotUnit, capacity int) error {
	return r.t.with(func(st *state) error {
		rows := st.slots[key]
		if rows == nil {
			rows = map[model.SlotUnit]model.AvailabilitySlot{}
			st.slots[key] = rows
		}
		for _, u := range units {
			row, ok := rows[u]
			if !ok {
				row = model.DefaultSlot(key, u, capacity)
			}
			rows[u] = row.Resized(capacity)
		}
		return nil
	})
}

func (r slotRepo) Decrement(_ context.Context, key model.SlotKey, unit model.SlotUnit, qty int) (bool, error) {
	var ok bool
	err := r.t.with(func(st *state) error {
		sl, found := st.slots[key][unit]
		if !found || !sl.IsAvailable || sl.Available < qty {
			return nil
		}
		sl.Available -= qty
		st.slots[key][unit] = sl
		ok = true
		return nil
	})
	return ok, err
}

func (r slotRepo) Increment(_ context.Context, key model.SlotKey, unit model.SlotUnit, qty int) error {
	return r.t.with(func(st *state) error {
		sl, found := st.slots[key][unit]
		if !found {
			return nil
		}
		sl.Available = min(sl.Available+qty, sl.Capacity)
		st.slots[key][unit] = sl
		return nil
	})
}

func (r slotRepo) Put(_ context.Context, slot model.AvailabilitySlot) error {
	return r.t.with(func(st *state) error {
		rows := st.slots[slot.Key]
		if rows == nil {
			rows = map[model.SlotUnit]model.AvailabilitySlot{}
			st.slots[slot.Key] = rows
		}
		rows[slot.Unit] = slot
		return nil
	})
}

type holdRepo struct{ t *txView }

func (r holdRepo) Create(_ context.Context, tok model.ReservationToken) error {
	return r.t.with(func(st *state) error {
		st.holds[tok.ID] = cloneToken(tok)
		return nil
	})
}

func (r holdRepo) Get(_ context.Context, id string) (*model.ReservationToken, error) {
	var out model.ReservationToken
	err := r.t.with(func(st *state) error {
		tok, ok := st.holds[id]
		if !ok {
			return apperr.ErrNotFound
		}
		out = cloneToken(tok)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r holdRepo) MarkReleased(_ context.Context, id string, at time.Time) (bool, error) {
	var ok bool
	err := r.t.with(func(st *state) error {
		tok, found := st.holds[id]
		if !found || tok.Released() {
			return nil
		}
		tok.ReleasedAt = &at
		st.holds[id] = tok
		ok = true
		return nil
	})
	return ok, err
}

type bookingRepo struct{ t *txView }

func (r bookingRepo) Create(_ context.Context, b *model.Booking) error {
	return r.t.with(func(st *state) error {
		if _, taken := st.refs[b.Reference]; taken {
			return apperr.ErrDuplicateReference
		}
		for i := range b.Lines {
			st.lineSeq++
			b.Lines[i].ID = st.lineSeq
			b.Lines[i].BookingID = b.ID
		}
		st.bookings[b.ID] = cloneBooking(*b)
		st.refs[b.Reference] = b.ID
		return nil
	})
}

func (r bookingRepo) Get(_ context.Context, id string) (*model.Booking, error) {
	var out model.Booking
	err := r.t.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return apperr.ErrNotFound
		}
		out = cloneBooking(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate is Get: the store lock already serializes transactions.
func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	return r.Get(ctx, id)
}

func (r bookingRepo) GetByReference(ctx context.Context, reference string) (*model.Booking, error) {
	var id string
	err := r.t.with(func(st *state) error {
		var ok bool
		if id, ok = st.refs[reference]; !ok {
			return apperr.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r bookingRepo) List(_ context.Context, f store.BookingFilter) ([]model.Booking, error) {
	var out []model.Booking
	err := r.t.with(func(st *state) error {
		for _, b := range st.bookings {
			if !matches(b, f) {
				continue
			}
			out = append(out, cloneBooking(b))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(b model.Booking, f store.BookingFilter) bool {
	if f.CustomerID != "" || f.TenantID != "" {
		byCustomer := f.CustomerID != "" && b.Customer.CustomerID == f.CustomerID
		byTenant := f.TenantID != "" && b.TenantID == f.TenantID
		if !byCustomer && !byTenant {
			return false
		}
	}
	if f.ResourceID != "" && b.ResourceID != f.ResourceID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Kind != "" && b.Kind != f.Kind {
		return false
	}
	return true
}

func (r bookingRepo) Update(_ context.Context, b *model.Booking) error {
	return r.t.with(func(st *state) error {
		cur, ok := st.bookings[b.ID]
		if !ok {
			return apperr.ErrNotFound
		}
		cur.Status = b.Status
		cur.Payment = b.Payment
		cur.Financials = b.Financials
		cur.Notes = b.Notes
		cur.ReservationToken = b.ReservationToken
		cur.UpdatedAt = b.UpdatedAt
		st.bookings[b.ID] = cur
		return nil
	})
}

func (r bookingRepo) AppendHistory(_ context.Context, bookingID string, change model.StatusChange) error {
	return r.t.with(func(st *state) error {
		cur, ok := st.bookings[bookingID]
		if !ok {
			return apperr.ErrNotFound
		}
		cur.History = append(cur.History, change)
		st.bookings[bookingID] = cur
		return nil
	})
}

func (r bookingRepo) Delete(_ context.Context, id string) error {
	return r.t.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return apperr.ErrNotFound
		}
		delete(st.refs, b.Reference)
		delete(st.bookings, id)
		return nil
	})
}

func cloneToken(t model.ReservationToken) model.ReservationToken {
	t.Units = append([]model.SlotUnit(nil), t.Units...)
	if t.ReleasedAt != nil {
		at := *t.ReleasedAt
		t.ReleasedAt = &at
	}
	return t
}

func cloneBooking(b model.Booking) model.Booking {
	b.Lines = append([]model.OrderLine(nil), b.Lines...)
	b.History = append([]model.StatusChange(nil), b.History...)
	if b.Delivery != nil {
		d := *b.Delivery
		b.Delivery = &d
	}
	if b.Catering != nil {
		c := *b.Catering
		b.Catering = &c
	}
	return b
}
