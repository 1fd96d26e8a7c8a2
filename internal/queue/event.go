// Package queue defines message payloads exchanged over the message broker
// and the background consumers that read them.
package queue

import (
	"time"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// Lifecycle event names.  They double as routing keys on the events
// exchange.
const (
	EventCreated   = "booking.created"
	EventConfirmed = "booking.confirmed"
	EventAdvanced  = "booking.advanced"
	EventCancelled = "booking.cancelled"
	EventNoShow    = "booking.no_show"
	EventDeleted   = "booking.deleted"
)

// BookingEvent is published after a lifecycle change commits.  It carries
// enough of the booking for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
	Event      string       `json:"event"`
	BookingID  string       `json:"booking_id"`
	Reference  string       `json:"reference"`
	Kind       model.Kind   `json:"kind"`
	TenantID   string       `json:"tenant_id"`
	CustomerID string       `json:"customer_id"`
	ResourceID string       `json:"resource_id"`
	Status     model.Status `json:"status"`
	Start      string       `json:"start"`
	Total      string       `json:"total"`
	Currency   string       `json:"currency"`
	OccurredAt string       `json:"occurred_at"`
}

// NewBookingEvent snapshots b for the named event.
func NewBookingEvent(event string, b *model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Event:      event,
		BookingID:  b.ID,
		Reference:  b.Reference,
		Kind:       b.Kind,
		TenantID:   b.TenantID,
		CustomerID: b.Customer.CustomerID,
		ResourceID: b.ResourceID,
		Status:     b.Status,
		Start:      b.Window.Start().Format(time.RFC3339),
		Total:      b.Financials.Total.StringFixed(2),
		Currency:   b.Financials.Currency,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}

// PaymentStatusEvent is consumed from the payment collaborator.  The
// engine records the reference and status verbatim.
type PaymentStatusEvent struct {
	EventID          string `json:"event_id"`
	BookingID        string `json:"booking_id"`
	TenantID         string `json:"tenant_id"`
	PaymentReference string `json:"payment_reference"`
	PaymentStatus    string `json:"payment_status"`
}
