package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/reservation-engine/internal/availability"
	"github.com/iliyamo/reservation-engine/internal/middleware"
)

// AvailabilityHandler serves calendar reads and tenant calendar edits.
type AvailabilityHandler struct {
	Ledger *availability.Ledger
}

func NewAvailabilityHandler(l *availability.Ledger) *AvailabilityHandler {
	if l == nil {
		panic("nil ledger passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Ledger: l}
}

// Query handles GET /v1/resources/:id/availability.  A check_in and
// check_out pair asks for nights; otherwise date (and optional time)
// asks for a single slot.
func (h *AvailabilityHandler) Query(c echo.Context) error {
	checkIn, checkOut := c.QueryParam("check_in"), c.QueryParam("check_out")
	w, err := parseWindow(checkIn != "" || checkOut != "", checkIn, checkOut, c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return writeError(c, err)
	}
	slots, err := h.Ledger.Query(c.Request().Context(), c.Param("id"), c.QueryParam("sub_resource_id"), w)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resource_id": c.Param("id"), "slots": slots})
}

// Free handles GET /v1/resources/:id/availability/free: the
// sub-resources (tables, room types) that can seat party at date and
// time, or for the nights between check_in and check_out.
func (h *AvailabilityHandler) Free(c echo.Context) error {
	checkIn, checkOut := c.QueryParam("check_in"), c.QueryParam("check_out")
	w, err := parseWindow(checkIn != "" || checkOut != "", checkIn, checkOut, c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return writeError(c, err)
	}
	party, err := intQuery(c.QueryParam("party"), "party")
	if err != nil {
		return writeError(c, err)
	}
	free, err := h.Ledger.FreeSubResources(c.Request().Context(), c.Param("id"), w, party)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"resource_id": c.Param("id"), "party": party, "items": free, "count": len(free)})
}

// Set handles PUT /v1/resources/:id/availability.  Only the owning tenant
// may edit the calendar.
func (h *AvailabilityHandler) Set(c echo.Context) error {
	var body slotUpdateRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	unit, upd := body.toEngine()
	slot, err := h.Ledger.SetAvailability(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), body.SubResourceID, unit, upd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}
