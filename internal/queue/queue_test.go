package queue

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

func TestNewBookingEventSnapshotsBooking(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &model.Booking{
		ID: "b1", Reference: "ACCt1ABCDEFGH", Kind: model.KindStay, TenantID: "t1", ResourceID: "hotel-1",
		Customer: model.Party{CustomerID: "cust-1"}, Status: model.StatusConfirmed,
		Window:     model.StayWindow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)),
		Financials: model.Financials{Total: decimal.RequireFromString("300"), Currency: "USD"},
	}
	ev := NewBookingEvent(EventConfirmed, b, at)
	assert.Equal(t, "300.00", ev.Total)
	assert.Equal(t, "2024-06-01T00:00:00Z", ev.Start)
	assert.Equal(t, "cust-1", ev.CustomerID)
	assert.Equal(t, "2024-05-01T12:00:00Z", ev.OccurredAt)
}

func TestBookingLogAppendsLines(t *testing.T) {
	l := NewBookingLog(t.TempDir())
	for _, name := range []string{EventConfirmed, EventCancelled} {
		body, err := json.Marshal(BookingEvent{Event: name, BookingID: "b1", Reference: "FDt1XYZ12345", Total: "25.00", Currency: "USD"})
		require.NoError(t, err)
		require.NoError(t, l.Handle(context.Background(), body))
	}

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "booking.confirmed | booking_id=b1 | reference=FDt1XYZ12345")
	assert.Contains(t, lines[1], "booking.cancelled")
	assert.True(t, strings.HasSuffix(lines[1], "total=25.00 USD"))
}

func TestBookingLogRejectsMalformed(t *testing.T) {
	l := NewBookingLog(t.TempDir())
	assert.Error(t, l.Handle(context.Background(), []byte("{")))
	assert.Error(t, l.Handle(context.Background(), []byte(`{"event":"booking.confirmed"}`)))
	_, err := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err))
}

type call struct {
	actor                  model.Actor
	id, reference, status string
}

type fakeRecorder struct {
	calls []call
	err   error
}

func (f *fakeRecorder) RecordPayment(_ context.Context, actor model.Actor, id, reference, status string) (*model.Booking, error) {
	f.calls = append(f.calls, call{actor, id, reference, status})
	if f.err != nil {
		return nil, f.err
	}
	return &model.Booking{ID: id, Payment: model.Payment{Reference: reference, Status: status}}, nil
}

func paymentBody(t *testing.T, ev PaymentStatusEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestPaymentHandlerRecordsAsTenant(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewPaymentHandler(rec, nil, 0, nil)

	err := h.Handle(context.Background(), paymentBody(t, PaymentStatusEvent{
		EventID: "e1", BookingID: "b1", TenantID: "t1", PaymentReference: "pi_123", PaymentStatus: "paid",
	}))
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, call{model.Actor{TenantID: "t1"}, "b1", "pi_123", "paid"}, rec.calls[0])
}

func TestPaymentHandlerSkipsRedeliveries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rec := &fakeRecorder{}
	h := NewPaymentHandler(rec, rdb, time.Hour, nil)
	body := paymentBody(t, PaymentStatusEvent{EventID: "e1", BookingID: "b1", TenantID: "t1", PaymentStatus: "paid"})

	require.NoError(t, h.Handle(context.Background(), body))
	require.NoError(t, h.Handle(context.Background(), body))
	assert.Len(t, rec.calls, 1)
	assert.True(t, mr.Exists("payment:event:e1"))
}

func TestPaymentHandlerFailureAllowsRetry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rec := &fakeRecorder{err: apperr.ErrNotFound}
	h := NewPaymentHandler(rec, rdb, time.Hour, nil)
	body := paymentBody(t, PaymentStatusEvent{EventID: "e2", BookingID: "missing", TenantID: "t1", PaymentStatus: "paid"})

	err := h.Handle(context.Background(), body)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, mr.Exists("payment:event:e2"))
}

func TestPaymentHandlerRejectsIncompleteEvents(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewPaymentHandler(rec, nil, 0, nil)
	assert.Error(t, h.Handle(context.Background(), []byte("nope")))
	assert.Error(t, h.Handle(context.Background(), paymentBody(t, PaymentStatusEvent{BookingID: "b1", PaymentStatus: "paid"})))
	assert.Error(t, h.Handle(context.Background(), paymentBody(t, PaymentStatusEvent{BookingID: "b1", TenantID: "t1"})))
	assert.Empty(t, rec.calls)
}
