package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party identifies who requested a booking.  CustomerID is an opaque
// identifier resolved by the caller.
type Party struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// DeliveryDetails are required for delivery orders.
type DeliveryDetails struct {
	Address      string `json:"address"`
	City         string `json:"city"`
	Instructions string `json:"instructions,omitempty"`
}

// CateringDetails are required for catering bookings.
type CateringDetails struct {
	Location       string `json:"location"`
	ExpectedGuests int    `json:"expected_guests,omitempty"`
}

// Financials holds the computed money of a booking.  The invariant
// Total = Subtotal + Taxes + Fees + Tip - Discount is maintained by the
// pricing package; nothing else writes these fields.
type Financials struct {
	Rate     decimal.Decimal `json:"rate"`
	Nights   int             `json:"nights,omitempty"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Taxes    decimal.Decimal `json:"taxes"`
	Fees     decimal.Decimal `json:"fees"`
	Discount decimal.Decimal `json:"discount"`
	Tip      decimal.Decimal `json:"tip"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Payment is supplied by an external payment collaborator.  The engine
// stores it and never interprets it.
type Payment struct {
	Reference string `json:"reference,omitempty"`
	Status    string `json:"status"`
}

// OrderLine is one item of a dining order.  UnitPrice is frozen at order
// creation; LineTotal = Quantity × UnitPrice and is never recalculated.
type OrderLine struct {
	ID             uint64          `json:"id,omitempty"`
	BookingID      string          `json:"booking_id,omitempty"`
	ItemID         string          `json:"item_id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	LineTotal      decimal.Decimal `json:"line_total"`
	Instructions   string          `json:"instructions,omitempty"`
	Customizations map[string]any  `json:"customizations,omitempty"`
}

// Booking is the central entity of the engine.
type Booking struct {
	ID               string           `json:"id"`
	Reference        string           `json:"reference"`
	Kind             Kind             `json:"kind"`
	TenantID         string           `json:"tenant_id"`
	ResourceID       string           `json:"resource_id"`
	SubResourceID    string           `json:"sub_resource_id,omitempty"`
	Customer         Party            `json:"customer"`
	Window           Window           `json:"window"`
	Guests           int              `json:"guests"`
	Quantity         int              `json:"quantity"`
	Delivery         *DeliveryDetails `json:"delivery,omitempty"`
	Catering         *CateringDetails `json:"catering,omitempty"`
	Lines            []OrderLine      `json:"lines,omitempty"`
	Financials       Financials       `json:"financials"`
	Status           Status           `json:"status"`
	Payment          Payment          `json:"payment"`
	Notes            string           `json:"notes,omitempty"`
	ReservationToken string           `json:"-"`
	History          []StatusChange   `json:"history"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// StampedAt returns when the booking entered status s, if it ever did.
func (b *Booking) StampedAt(s Status) *time.Time {
	for i := len(b.History) - 1; i >= 0; i-- {
		if b.History[i].Status == s {
			at := b.History[i].At
			return &at
		}
	}
	return nil
}

// Actor is the identity context supplied with every engine call.  Both
// identifiers are opaque strings resolved by the caller.
type Actor struct {
	CustomerID string
	TenantID   string
}

// IsZero reports whether the actor carries no identity at all.
func (a Actor) IsZero() bool { return a.CustomerID == "" && a.TenantID == "" }
