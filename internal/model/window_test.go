package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestStayWindowUnitsExcludeCheckout(t *testing.T) {
	w := StayWindow(day(t, "2024-06-01"), day(t, "2024-06-04"))

	units, err := w.Units()
	require.NoError(t, err)
	assert.Equal(t, 3, w.Nights())
	assert.Equal(t, []SlotUnit{{Date: "2024-06-01"}, {Date: "2024-06-02"}, {Date: "2024-06-03"}}, units)
}

func TestStayWindowRejectsEmptyOrInvertedRange(t *testing.T) {
	_, err := StayWindow(day(t, "2024-06-04"), day(t, "2024-06-04")).Units()
	assert.Error(t, err)

	_, err = StayWindow(day(t, "2024-06-05"), day(t, "2024-06-04")).Units()
	assert.Error(t, err)
}

func TestInstantWindowSingleUnit(t *testing.T) {
	w := InstantWindow(day(t, "2024-06-01"), "19:30")

	units, err := w.Units()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "2024-06-01T19:30", units[0].String())
	assert.Equal(t, time.Date(2024, 6, 1, 19, 30, 0, 0, time.UTC), w.Start())
}

func TestInstantWindowRejectsBadClock(t *testing.T) {
	_, err := InstantWindow(day(t, "2024-06-01"), "7pm").Units()
	assert.Error(t, err)
}

func TestKindChains(t *testing.T) {
	assert.True(t, KindDelivery.CanAdvance(StatusConfirmed, StatusPreparing))
	assert.True(t, KindDelivery.CanAdvance(StatusReady, StatusDelivered))
	assert.True(t, KindDelivery.CanAdvance(StatusDelivered, StatusCompleted))
	assert.False(t, KindDelivery.CanAdvance(StatusReady, StatusPreparing))
	assert.False(t, KindDelivery.CanAdvance(StatusPending, StatusPreparing))

	assert.True(t, KindStay.CanAdvance(StatusConfirmed, StatusCheckedIn))
	assert.False(t, KindStay.CanAdvance(StatusConfirmed, StatusPreparing))
	assert.True(t, KindReservation.CanAdvance(StatusConfirmed, StatusCompleted))

	assert.True(t, StatusDelivered.IsFinished())
	assert.False(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCheckedOut.IsTerminal())

	assert.Equal(t, []Status{StatusConfirmed, StatusCheckedIn, StatusCheckedOut}, KindStay.Chain())
	assert.Equal(t, "ACC", KindStay.ReferencePrefix())
	assert.Equal(t, "FD", KindCatering.ReferencePrefix())
}

func TestSlotResizedKeepsTakenUnits(t *testing.T) {
	row := AvailabilitySlot{Capacity: 5, Available: 3}

	assert.Equal(t, row, row.Resized(5))

	shrunk := row.Resized(4)
	assert.Equal(t, 4, shrunk.Capacity)
	assert.Equal(t, 2, shrunk.Available)

	assert.Equal(t, 0, row.Resized(1).Available)

	grown := row.Resized(8)
	assert.Equal(t, 8, grown.Capacity)
	assert.Equal(t, 6, grown.Available)
}
