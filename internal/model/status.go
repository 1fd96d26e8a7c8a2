package model

import (
	"fmt"
	"time"
)

// Kind selects the booking variant.  It decides the window shape, the
// pricing path, the reference prefix and the fulfillment chain.
type Kind string

const (
	KindStay        Kind = "stay"
	KindReservation Kind = "reservation"
	KindDelivery    Kind = "delivery"
	KindTakeout     Kind = "takeout"
	KindCatering    Kind = "catering"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := fulfillment[k]; !ok {
		return "", fmt.Errorf("invalid booking kind: %s", s)
	}
	return k, nil
}

// IsDining reports whether the kind belongs to the food and dining domain.
func (k Kind) IsDining() bool { return k != KindStay }

// ReferencePrefix is the domain prefix of booking references.
func (k Kind) ReferencePrefix() string {
	if k.IsDining() {
		return "FD"
	}
	return "ACC"
}

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusCheckedIn      Status = "checked_in"
	StatusCheckedOut     Status = "checked_out"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusNoShow         Status = "no_show"
)

// fulfillment lists, per kind, the ordered states a confirmed booking
// moves through.  The last entry is the kind's completion state.
var fulfillment = map[Kind][]Status{
	KindStay:        {StatusConfirmed, StatusCheckedIn, StatusCheckedOut},
	KindReservation: {StatusConfirmed, StatusCompleted},
	KindDelivery:    {StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered, StatusCompleted},
	KindTakeout:     {StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted},
	KindCatering:    {StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted},
}

// ParseStatus converts a string to a known Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusPreparing,
		StatusReady, StatusOutForDelivery, StatusDelivered, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("invalid booking status: %s", s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCheckedOut, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// IsFinished reports whether the booking can no longer be cancelled or
// marked as a no-show.  Delivered orders are finished but may still be
// closed out as completed.
func (s Status) IsFinished() bool {
	return s.IsTerminal() || s == StatusDelivered
}

// Chain returns the fulfillment chain of the kind, starting at confirmed.
func (k Kind) Chain() []Status {
	return fulfillment[k]
}

// chainIndex returns the position of s in the kind's chain, or -1.
func (k Kind) chainIndex(s Status) int {
	for i, st := range k.Chain() {
		if st == s {
			return i
		}
	}
	return -1
}

// CanAdvance reports whether a booking of this kind in status from may
// move forward to status to.  Forward skips are allowed.
func (k Kind) CanAdvance(from, to Status) bool {
	i, j := k.chainIndex(from), k.chainIndex(to)
	return i >= 0 && j > i
}

// StatusChange is one entry of a booking's status timeline.
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}
