package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/availability"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/store"
)

var key = model.SlotKey{ResourceID: "hotel-1"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestEnsureResizesExistingRows(t *testing.T) {
	s, mock := newMock(t)
	units := []model.SlotUnit{{Date: "2024-06-01"}, {Date: "2024-06-01", Time: "19:30"}}
	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE available = LEAST(VALUES(capacity), GREATEST(0, available + VALUES(capacity) - capacity)), capacity = VALUES(capacity)`)).
		WithArgs("hotel-1", "", "2024-06-01", "", 2, 2, "hotel-1", "", "2024-06-01", "19:30", 2, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, s.View().Slots().Ensure(context.Background(), key, units, 2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementIsConditional(t *testing.T) {
	s, mock := newMock(t)
	unit := model.SlotUnit{Date: "2024-06-01"}
	q := regexp.QuoteMeta(`UPDATE availability_slots SET available = available - ?`)

	mock.ExpectExec(q).WithArgs(2, "hotel-1", "", "2024-06-01", "", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(2, "hotel-1", "", "2024-06-01", "", 2).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.View().Slots().Decrement(context.Background(), key, unit, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.View().Slots().Decrement(context.Background(), key, unit, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotsKeepsOnlyRequestedUnits(t *testing.T) {
	s, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"slot_date", "slot_time", "capacity", "available", "price", "min_stay", "is_available"}).
		AddRow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "19:00", 4, 3, "80.00", 1, true).
		AddRow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "20:00", 4, 4, nil, 1, true)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM availability_slots`)).
		WithArgs("hotel-1", "", "2024-06-01", "2024-06-01").
		WillReturnRows(rows)

	unit := model.SlotUnit{Date: "2024-06-01", Time: "19:00"}
	got, err := s.View().Slots().Slots(context.Background(), key, []model.SlotUnit{unit})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[unit].Available)
	require.NotNil(t, got[unit].Price)
	assert.True(t, got[unit].Price.Equal(decimal.RequireFromString("80.00")))
}

func TestInTxCommitsAndRollsBack(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, s.InTx(ctx, func(context.Context, store.Tx) error { return nil }))

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, s.InTx(ctx, func(context.Context, store.Tx) error { return boom }), boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsDuplicateReference(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry for key 'uq_bookings_reference'"})

	b := &model.Booking{
		ID: "b1", Reference: "ACCt1AAAAAAAA", Kind: model.KindStay,
		Window: model.StayWindow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)),
	}
	err := s.View().Bookings().Create(context.Background(), b)
	assert.ErrorIs(t, err, apperr.ErrDuplicateReference)
}

func TestMarkReleasedOnlyOnce(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	q := regexp.QuoteMeta(`UPDATE reservation_holds SET released_at = ? WHERE id = ? AND released_at IS NULL`)
	mock.ExpectExec(q).WithArgs(at, "tok-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(at, "tok-1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.View().Holds().MarkReleased(context.Background(), "tok-1", at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.View().Holds().MarkReleased(context.Background(), "tok-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUnknownBookingIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.View().Bookings().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// The ledger on MySQL: the second night is full, so the decrement of the
// first night must be rolled back with the transaction.
func TestLedgerReserveRollsBackOnFullNight(t *testing.T) {
	s, mock := newMock(t)
	ledger := availability.NewLedger(nil, s, nil)
	target := availability.Target{Key: key, TenantID: "t1", Capacity: 1, Rate: decimal.RequireFromString("100"), Currency: "USD", Active: true}
	w := model.StayWindow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO availability_slots`)).
		WithArgs("hotel-1", "", "2024-06-01", "", 1, 1, "hotel-1", "", "2024-06-02", "", 1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM availability_slots`)).
		WillReturnRows(sqlmock.NewRows([]string{"slot_date", "slot_time", "capacity", "available", "price", "min_stay", "is_available"}).
			AddRow(day(1), "", 1, 1, nil, 1, true).
			AddRow(day(2), "", 1, 0, nil, 1, true))
	dec := regexp.QuoteMeta(`UPDATE availability_slots SET available = available - ?`)
	mock.ExpectExec(dec).WithArgs(1, "hotel-1", "", "2024-06-01", "", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(dec).WithArgs(1, "hotel-1", "", "2024-06-02", "", 1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, _, err := ledger.ReserveTx(ctx, tx, target, w, 1)
		return err
	})
	var capErr *apperr.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "2024-06-02", capErr.Unit)
	assert.Equal(t, 0, capErr.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var resourceCols = []string{"id", "tenant_id", "parent_id", "name", "kind", "capacity_unit", "total_capacity", "max_occupancy",
	"base_rate", "currency", "active", "created_at", "updated_at"}

func TestCatalogChildrenOrderedByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM resources WHERE parent_id = ? AND deleted_at IS NULL ORDER BY id`)).
		WithArgs("bistro").
		WillReturnRows(sqlmock.NewRows(resourceCols).
			AddRow("table-1", "t1", "bistro", "Window", "table", "tables", 1, 2, "0.00", "USD", true, now, now).
			AddRow("table-2", "t1", "bistro", "Patio", "table", "tables", 1, 6, "0.00", "USD", false, now, now))

	children, err := NewCatalogRepo(db).Children(context.Background(), "bistro")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "table-1", children[0].ID)
	assert.Equal(t, 6, children[1].MaxOccupancy)
	assert.False(t, children[1].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogUpdateResourceUnknownIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	res := model.Resource{ID: "ghost", Name: "Ghost", TotalCapacity: 2, MaxOccupancy: 2, BaseRate: decimal.RequireFromString("80.00"), Active: true}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE resources SET name = ?, total_capacity = ?`)).
		WithArgs("Ghost", 2, 2, res.BaseRate, true, res.UpdatedAt, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM resources WHERE id = ?`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	err = NewCatalogRepo(db).UpdateResource(context.Background(), res)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
