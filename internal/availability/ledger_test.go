package availability

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/memstore"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/scope"
	"github.com/iliyamo/reservation-engine/internal/store"
)

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newLedger(t *testing.T, capacity int) (*Ledger, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	ms.PutResource(model.Resource{
		ID: "hotel-1", TenantID: "t1", Kind: model.ResourceAccommodation,
		TotalCapacity: capacity, MaxOccupancy: 2,
		BaseRate: decimal.RequireFromString("100.00"), Currency: "USD", Active: true,
	})
	ms.PutResource(model.Resource{
		ID: "deluxe", TenantID: "t1", ParentID: "hotel-1", Kind: model.ResourceRoomType,
		TotalCapacity: 1, MaxOccupancy: 3,
		BaseRate: decimal.RequireFromString("250.00"), Currency: "USD", Active: true,
	})
	return NewLedger(ms, ms, scope.NewGuard()), ms
}

func remaining(t *testing.T, l *Ledger, w model.Window) []int {
	t.Helper()
	slots, err := l.Query(context.Background(), "hotel-1", "", w)
	require.NoError(t, err)
	out := make([]int, len(slots))
	for i, s := range slots {
		out[i] = s.Available
	}
	return out
}

func TestQueryDefaultsToFullCapacityAtBaseRate(t *testing.T) {
	l, _ := newLedger(t, 5)
	w := model.StayWindow(day("2024-06-01"), day("2024-06-04"))

	slots, err := l.Query(context.Background(), "hotel-1", "", w)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, 5, s.Available)
		assert.True(t, s.Price.Equal(decimal.RequireFromString("100.00")))
		assert.True(t, s.IsAvailable)
	}
	assert.Equal(t, "2024-06-03", slots[2].Unit.Date)
}

func TestReserveThenReleaseRestoresCapacity(t *testing.T) {
	l, _ := newLedger(t, 3)
	ctx := context.Background()
	w := model.StayWindow(day("2024-06-01"), day("2024-06-04"))
	before := remaining(t, l, w)

	tok, err := l.Reserve(ctx, "hotel-1", "", w, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1}, remaining(t, l, w))

	require.NoError(t, l.Release(ctx, tok.ID))
	assert.Equal(t, before, remaining(t, l, w))

	// second release and unknown tokens are no-ops
	require.NoError(t, l.Release(ctx, tok.ID))
	require.NoError(t, l.Release(ctx, "never-issued"))
	assert.Equal(t, before, remaining(t, l, w))
}

func TestReserveIsAllOrNothing(t *testing.T) {
	l, _ := newLedger(t, 1)
	ctx := context.Background()

	_, err := l.Reserve(ctx, "hotel-1", "", model.StayWindow(day("2024-06-03"), day("2024-06-04")), 1)
	require.NoError(t, err)

	w := model.StayWindow(day("2024-06-01"), day("2024-06-05"))
	_, err = l.Reserve(ctx, "hotel-1", "", w, 1)
	var capErr *apperr.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)
	assert.Equal(t, "2024-06-03", capErr.Unit)

	// the nights before the full one were rolled back
	assert.Equal(t, []int{1, 1, 0, 1}, remaining(t, l, w))
}

func TestCheckoutDayIsNotConsumed(t *testing.T) {
	l, _ := newLedger(t, 1)
	ctx := context.Background()

	_, err := l.Reserve(ctx, "hotel-1", "", model.StayWindow(day("2024-06-01"), day("2024-06-04")), 1)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, "hotel-1", "", model.StayWindow(day("2024-06-04"), day("2024-06-06")), 1)
	require.NoError(t, err)
}

func TestInstantSlotsBlockOnlyTheSameTime(t *testing.T) {
	l, _ := newLedger(t, 1)
	ctx := context.Background()
	d := day("2024-06-01")

	_, err := l.Reserve(ctx, "hotel-1", "", model.InstantWindow(d, "19:00"), 1)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, "hotel-1", "", model.InstantWindow(d, "19:00"), 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)
	_, err = l.Reserve(ctx, "hotel-1", "", model.InstantWindow(d, "20:30"), 1)
	assert.NoError(t, err)
}

func TestFreeSubResourcesFitsPartyAndSlot(t *testing.T) {
	ms := memstore.New()
	ms.PutResource(model.Resource{ID: "bistro", TenantID: "t1", Kind: model.ResourceRestaurant, Currency: "USD", Active: true})
	for _, tb := range []model.Resource{
		{ID: "t-patio", MaxOccupancy: 6},
		{ID: "t-window", MaxOccupancy: 2},
		{ID: "t-corner", MaxOccupancy: 4},
		{ID: "t-booth", MaxOccupancy: 4},
		{ID: "t-closed", MaxOccupancy: 8},
	} {
		tb.TenantID, tb.ParentID, tb.Kind, tb.TotalCapacity, tb.Currency = "t1", "bistro", model.ResourceTable, 1, "USD"
		tb.Active = tb.ID != "t-closed"
		ms.PutResource(tb)
	}
	l := NewLedger(ms, ms, scope.NewGuard())
	ctx := context.Background()
	at := model.InstantWindow(day("2024-06-01"), "19:00")

	_, err := l.Reserve(ctx, "bistro", "t-corner", at, 1)
	require.NoError(t, err)
	closed := false
	_, err = l.SetAvailability(ctx, model.Actor{TenantID: "t1"}, "bistro", "t-booth", model.SlotUnit{Date: "2024-06-01", Time: "19:00"},
		model.SlotUpdate{IsAvailable: &closed})
	require.NoError(t, err)

	free, err := l.FreeSubResources(ctx, "bistro", at, 3)
	require.NoError(t, err)
	ids := make([]string, len(free))
	for i, f := range free {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"t-patio"}, ids)

	later, err := l.FreeSubResources(ctx, "bistro", model.InstantWindow(day("2024-06-01"), "20:30"), 3)
	require.NoError(t, err)
	require.Len(t, later, 3)
	assert.Equal(t, 4, later[0].MaxOccupancy)
	assert.Equal(t, "t-patio", later[2].ID)
	assert.Equal(t, 1, later[2].Available)

	_, err = l.FreeSubResources(ctx, "bistro", at, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = l.FreeSubResources(ctx, "nowhere", at, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	const capacity = 8
	l, _ := newLedger(t, capacity)
	w := model.StayWindow(day("2024-07-01"), day("2024-07-03"))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < capacity+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.Reserve(context.Background(), "hotel-1", "", w, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity):
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, capacity, succeeded.Load())
	assert.EqualValues(t, 1, rejected.Load())
	assert.Equal(t, []int{0, 0}, remaining(t, l, w))
}

func TestSubResourceUsesItsOwnCalendar(t *testing.T) {
	l, _ := newLedger(t, 5)
	ctx := context.Background()
	w := model.StayWindow(day("2024-06-01"), day("2024-06-02"))

	_, err := l.Reserve(ctx, "hotel-1", "deluxe", w, 1)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, "hotel-1", "deluxe", w, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)
	assert.Equal(t, []int{5}, remaining(t, l, w))

	slots, err := l.Query(ctx, "hotel-1", "deluxe", w)
	require.NoError(t, err)
	assert.True(t, slots[0].Price.Equal(decimal.RequireFromString("250.00")))

	_, err = l.Reserve(ctx, "deluxe", "hotel-1", w, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestReserveRejectsInactiveAndUnknown(t *testing.T) {
	l, ms := newLedger(t, 1)
	ctx := context.Background()
	w := model.StayWindow(day("2024-06-01"), day("2024-06-02"))

	_, err := l.Reserve(ctx, "nowhere", "", w, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ms.PutResource(model.Resource{ID: "closed", TenantID: "t1", TotalCapacity: 1, Currency: "USD"})
	_, err = l.Reserve(ctx, "closed", "", w, 1)
	assert.ErrorIs(t, err, apperr.ErrInactive)
}

func TestCapacityChangeResizesExistingSlots(t *testing.T) {
	l, ms := newLedger(t, 3)
	ctx := context.Background()
	w := model.StayWindow(day("2024-06-01"), day("2024-06-02"))
	_, err := l.Reserve(ctx, "hotel-1", "", w, 1)
	require.NoError(t, err)
	require.Equal(t, []int{2}, remaining(t, l, w))

	res, err := ms.Get(ctx, "hotel-1")
	require.NoError(t, err)
	res.TotalCapacity = 1
	ms.PutResource(*res)

	slots, err := l.Query(ctx, "hotel-1", "", w)
	require.NoError(t, err)
	assert.Equal(t, 1, slots[0].Capacity)
	assert.Equal(t, 0, slots[0].Available)

	_, err = l.Reserve(ctx, "hotel-1", "", w, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)

	res.TotalCapacity = 4
	ms.PutResource(*res)
	_, err = l.Reserve(ctx, "hotel-1", "", w, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, remaining(t, l, w))
}

func TestSetAvailability(t *testing.T) {
	l, _ := newLedger(t, 4)
	ctx := context.Background()
	owner := model.Actor{TenantID: "t1"}
	unit := model.SlotUnit{Date: "2024-06-02"}
	w := model.StayWindow(day("2024-06-01"), day("2024-06-04"))

	price := decimal.RequireFromString("180.00")
	closed := false
	minStay := 3
	got, err := l.SetAvailability(ctx, owner, "hotel-1", "", unit, model.SlotUpdate{Price: &price, MinStay: &minStay})
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(price))
	assert.Equal(t, 4, got.Available)

	slots, err := l.Query(ctx, "hotel-1", "", w)
	require.NoError(t, err)
	assert.True(t, slots[0].Price.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, slots[1].Price.Equal(price))

	_, err = l.SetAvailability(ctx, owner, "hotel-1", "", unit, model.SlotUpdate{IsAvailable: &closed})
	require.NoError(t, err)
	_, err = l.Reserve(ctx, "hotel-1", "", w, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientCapacity)

	tooMany := 5
	_, err = l.SetAvailability(ctx, owner, "hotel-1", "", unit, model.SlotUpdate{Available: &tooMany})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = l.SetAvailability(ctx, model.Actor{CustomerID: "c1"}, "hotel-1", "", unit, model.SlotUpdate{Price: &price})
	assert.ErrorIs(t, err, apperr.ErrDenied)
	_, err = l.SetAvailability(ctx, model.Actor{TenantID: "t2"}, "hotel-1", "", unit, model.SlotUpdate{Price: &price})
	assert.ErrorIs(t, err, apperr.ErrDenied)
}

func TestMinimumStayEnforcedOnCheckInNight(t *testing.T) {
	l, _ := newLedger(t, 2)
	ctx := context.Background()
	minStay := 2
	_, err := l.SetAvailability(ctx, model.Actor{TenantID: "t1"}, "hotel-1", "", model.SlotUnit{Date: "2024-06-01"}, model.SlotUpdate{MinStay: &minStay})
	require.NoError(t, err)

	_, err = l.Reserve(ctx, "hotel-1", "", model.StayWindow(day("2024-06-01"), day("2024-06-02")), 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = l.Reserve(ctx, "hotel-1", "", model.StayWindow(day("2024-06-01"), day("2024-06-03")), 1)
	assert.NoError(t, err)
}

func TestReserveTxRollsBackWithEnclosingTransaction(t *testing.T) {
	l, ms := newLedger(t, 2)
	ctx := context.Background()
	w := model.StayWindow(day("2024-06-01"), day("2024-06-03"))
	target, err := l.Resolve(ctx, "hotel-1", "")
	require.NoError(t, err)

	err = ms.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, prices, err := l.ReserveTx(ctx, tx, target, w, 2)
		require.NoError(t, err)
		assert.Len(t, prices, 2)
		return apperr.Invalid("delivery.address", "is required")
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []int{2, 2}, remaining(t, l, w))
}
