package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/reservation-engine/internal/catalog"
	"github.com/iliyamo/reservation-engine/internal/middleware"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// ResourceHandler serves catalog reads and tenant resource edits.
type ResourceHandler struct {
	Catalog catalog.Catalog
	Admin   *catalog.Admin
}

func NewResourceHandler(cat catalog.Catalog, admin *catalog.Admin) *ResourceHandler {
	if cat == nil || admin == nil {
		panic("nil catalog passed to NewResourceHandler")
	}
	return &ResourceHandler{Catalog: cat, Admin: admin}
}

type resourceView struct {
	ID            string             `json:"id"`
	TenantID      string             `json:"tenant_id"`
	ParentID      string             `json:"parent_id,omitempty"`
	Name          string             `json:"name"`
	Kind          model.ResourceKind `json:"kind"`
	CapacityUnit  string             `json:"capacity_unit"`
	TotalCapacity int                `json:"total_capacity"`
	MaxOccupancy  int                `json:"max_occupancy"`
	BaseRate      string             `json:"base_rate"`
	Currency      string             `json:"currency"`
	Active        bool               `json:"active"`
}

func newResourceView(r *model.Resource) resourceView {
	return resourceView{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ParentID:      r.ParentID,
		Name:          r.Name,
		Kind:          r.Kind,
		CapacityUnit:  r.CapacityUnit,
		TotalCapacity: r.TotalCapacity,
		MaxOccupancy:  r.MaxOccupancy,
		BaseRate:      r.BaseRate.StringFixed(2),
		Currency:      r.Currency,
		Active:        r.Active,
	}
}

type resourceUpdateRequest struct {
	Name          *string          `json:"name"`
	BaseRate      *decimal.Decimal `json:"base_rate"`
	TotalCapacity *int             `json:"total_capacity"`
	MaxOccupancy  *int             `json:"max_occupancy"`
	Active        *bool            `json:"active"`
}

// Get handles GET /v1/resources/:id.
func (h *ResourceHandler) Get(c echo.Context) error {
	res, err := h.Catalog.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newResourceView(res))
}

// Update handles PUT /v1/resources/:id.  Rate and capacity changes apply
// to bookings made afterwards.
func (h *ResourceHandler) Update(c echo.Context) error {
	var body resourceUpdateRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Admin.UpdateResource(c.Request().Context(), middleware.ActorFrom(c), c.Param("id"), catalog.ResourceUpdate{
		Name:          body.Name,
		BaseRate:      body.BaseRate,
		TotalCapacity: body.TotalCapacity,
		MaxOccupancy:  body.MaxOccupancy,
		Active:        body.Active,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newResourceView(res))
}
