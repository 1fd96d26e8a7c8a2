package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/reservation-engine/internal/booking"
	"github.com/iliyamo/reservation-engine/internal/middleware"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// BookingHandler exposes the booking lifecycle over HTTP.  Every route
// runs behind JWTAuth; the engine decides what the actor may see or do.
type BookingHandler struct {
	Bookings *booking.Manager
}

func NewBookingHandler(m *booking.Manager) *BookingHandler {
	if m == nil {
		panic("nil manager passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: m}
}

// Create handles POST /v1/bookings and returns 201 with the pending
// booking.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	req, err := body.toEngine()
	if err != nil {
		return writeError(c, err)
	}
	b, err := h.Bookings.CreateBooking(c.Request().Context(), middleware.ActorFrom(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// List handles GET /v1/bookings?status=&kind=&resource_id=&limit=&offset=.
func (h *BookingHandler) List(c echo.Context) error {
	limit, err := intQuery(c.QueryParam("limit"), "limit")
	if err != nil {
		return writeError(c, err)
	}
	offset, err := intQuery(c.QueryParam("offset"), "offset")
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.Bookings.ListBookings(c.Request().Context(), middleware.ActorFrom(c), booking.ListFilter{
		ResourceID: c.QueryParam("resource_id"),
		Status:     model.Status(c.QueryParam("status")),
		Kind:       model.Kind(c.QueryParam("kind")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.Bookings.GetBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// GetByReference handles GET /v1/bookings/by-reference/:reference.
func (h *BookingHandler) GetByReference(c echo.Context) error {
	b, err := h.Bookings.GetBookingByReference(c.Request().Context(), middleware.ActorFrom(c), c.Param("reference"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	return h.respond(c)(h.Bookings.ConfirmBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")))
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.respond(c)(h.Bookings.CancelBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")))
}

// NoShow handles POST /v1/bookings/:id/no-show.
func (h *BookingHandler) NoShow(c echo.Context) error {
	return h.respond(c)(h.Bookings.MarkNoShow(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")))
}

// Advance handles POST /v1/bookings/:id/advance with {"status": "..."}.
func (h *BookingHandler) Advance(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil || body.Status == "" {
		return badRequest(c, "status is required")
	}
	return h.respond(c)(h.Bookings.AdvanceBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), model.Status(body.Status)))
}

// RecordPayment handles POST /v1/bookings/:id/payment with the opaque
// reference and status from the payment collaborator.
func (h *BookingHandler) RecordPayment(c echo.Context) error {
	var body struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.respond(c)(h.Bookings.RecordPayment(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), body.Reference, body.Status))
}

// Adjust handles POST /v1/bookings/:id/adjust.
func (h *BookingHandler) Adjust(c echo.Context) error {
	var body adjustmentsRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.respond(c)(h.Bookings.AdjustBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), body.toPricing()))
}

// Delete handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Delete(c echo.Context) error {
	if err := h.Bookings.DeleteBooking(c.Request().Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BookingHandler) respond(c echo.Context) func(*model.Booking, error) error {
	return func(b *model.Booking, err error) error {
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}
