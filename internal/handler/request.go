package handler

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/booking"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/pricing"
)

type adjustmentsRequest struct {
	Taxes    *decimal.Decimal `json:"taxes"`
	Fees     decimal.Decimal  `json:"fees"`
	Tip      decimal.Decimal  `json:"tip"`
	Discount decimal.Decimal  `json:"discount"`
	TaxRate  decimal.Decimal  `json:"tax_rate"`
}

func (a adjustmentsRequest) toPricing() pricing.Adjustments {
	return pricing.Adjustments{Taxes: a.Taxes, Fees: a.Fees, Tip: a.Tip, Discount: a.Discount, TaxRate: a.TaxRate}
}

type itemRequest struct {
	ItemID         string         `json:"item_id"`
	Quantity       int            `json:"quantity"`
	Instructions   string         `json:"instructions"`
	Customizations map[string]any `json:"customizations"`
}

// createBookingRequest is the body of POST /v1/bookings.  Stays use
// check_in/check_out; every other kind uses date and time.
type createBookingRequest struct {
	Kind          string                 `json:"kind"`
	ResourceID    string                 `json:"resource_id"`
	SubResourceID string                 `json:"sub_resource_id"`
	Customer      model.Party            `json:"customer"`
	CheckIn       string                 `json:"check_in"`
	CheckOut      string                 `json:"check_out"`
	Date          string                 `json:"date"`
	Time          string                 `json:"time"`
	Guests        int                    `json:"guests"`
	Rooms         int                    `json:"rooms"`
	Delivery      *model.DeliveryDetails `json:"delivery"`
	Catering      *model.CateringDetails `json:"catering"`
	Items         []itemRequest          `json:"items"`
	Adjustments   adjustmentsRequest     `json:"adjustments"`
	Currency      string                 `json:"currency"`
	Notes         string                 `json:"notes"`
}

func (r createBookingRequest) toEngine() (booking.CreateRequest, error) {
	kind, err := model.ParseKind(r.Kind)
	if err != nil {
		return booking.CreateRequest{}, apperr.Invalid("kind", err.Error())
	}
	w, err := parseWindow(kind == model.KindStay, r.CheckIn, r.CheckOut, r.Date, r.Time)
	if err != nil {
		return booking.CreateRequest{}, err
	}
	items := make([]booking.ItemRequest, len(r.Items))
	for i, it := range r.Items {
		items[i] = booking.ItemRequest{
			ItemID:         it.ItemID,
			Quantity:       it.Quantity,
			Instructions:   it.Instructions,
			Customizations: it.Customizations,
		}
	}
	return booking.CreateRequest{
		Kind:          kind,
		ResourceID:    r.ResourceID,
		SubResourceID: r.SubResourceID,
		Customer:      r.Customer,
		Window:        w,
		Guests:        r.Guests,
		Rooms:         r.Rooms,
		Delivery:      r.Delivery,
		Catering:      r.Catering,
		Items:         items,
		Adjustments:   r.Adjustments.toPricing(),
		Currency:      r.Currency,
		Notes:         r.Notes,
	}, nil
}

// parseWindow builds a date-range window when dateRange is set and an
// instant window otherwise.
func parseWindow(dateRange bool, checkIn, checkOut, date, clock string) (model.Window, error) {
	if dateRange {
		in, err := model.ParseDay(checkIn)
		if err != nil {
			return model.Window{}, apperr.Invalid("check_in", "must be YYYY-MM-DD")
		}
		out, err := model.ParseDay(checkOut)
		if err != nil {
			return model.Window{}, apperr.Invalid("check_out", "must be YYYY-MM-DD")
		}
		return model.StayWindow(in, out), nil
	}
	d, err := model.ParseDay(date)
	if err != nil {
		return model.Window{}, apperr.Invalid("date", "must be YYYY-MM-DD")
	}
	return model.InstantWindow(d, clock), nil
}

type slotUpdateRequest struct {
	SubResourceID string           `json:"sub_resource_id"`
	Date          string           `json:"date"`
	Time          string           `json:"time"`
	Available     *int             `json:"available"`
	Price         *decimal.Decimal `json:"price"`
	ClearPrice    bool             `json:"clear_price"`
	MinStay       *int             `json:"min_stay"`
	IsAvailable   *bool            `json:"is_available"`
}

func (r slotUpdateRequest) toEngine() (model.SlotUnit, model.SlotUpdate) {
	return model.SlotUnit{Date: r.Date, Time: r.Time}, model.SlotUpdate{
		Available:   r.Available,
		Price:       r.Price,
		ClearPrice:  r.ClearPrice,
		MinStay:     r.MinStay,
		IsAvailable: r.IsAvailable,
	}
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(field, "must be a non-negative integer")
	}
	return n, nil
}
