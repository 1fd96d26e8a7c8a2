package memstore

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/reservation-engine/internal/model"
)

type seedResource struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	ParentID      string          `json:"parent_id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	CapacityUnit  string          `json:"capacity_unit"`
	TotalCapacity int             `json:"total_capacity"`
	MaxOccupancy  int             `json:"max_occupancy"`
	BaseRate      decimal.Decimal `json:"base_rate"`
	Currency      string          `json:"currency"`
	Active        *bool           `json:"active"`
}

type seedItem struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ResourceID string          `json:"resource_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Available  *bool           `json:"available"`
}

// Seed loads {"resources": [...], "items": [...]} into the catalog.
// active and available default to true.
func (s *Store) Seed(r io.Reader) (resources, items int, err error) {
	var doc struct {
		Resources []seedResource `json:"resources"`
		Items     []seedItem     `json:"items"`
	}
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, 0, fmt.Errorf("decode seed: %w", err)
	}
	for i, sr := range doc.Resources {
		if sr.ID == "" || sr.TenantID == "" {
			return 0, 0, fmt.Errorf("seed resource %d: id and tenant_id are required", i)
		}
		s.PutResource(model.Resource{
			ID: sr.ID, TenantID: sr.TenantID, ParentID: sr.ParentID, Name: sr.Name,
			Kind: model.ResourceKind(sr.Kind), CapacityUnit: sr.CapacityUnit,
			TotalCapacity: sr.TotalCapacity, MaxOccupancy: sr.MaxOccupancy,
			BaseRate: sr.BaseRate, Currency: sr.Currency, Active: sr.Active == nil || *sr.Active,
		})
	}
	for i, si := range doc.Items {
		if si.ID == "" || si.ResourceID == "" {
			return 0, 0, fmt.Errorf("seed item %d: id and resource_id are required", i)
		}
		s.PutItem(model.MenuItem{
			ID: si.ID, TenantID: si.TenantID, ResourceID: si.ResourceID, Name: si.Name,
			Price: si.Price, Currency: si.Currency, Available: si.Available == nil || *si.Available,
		})
	}
	return len(doc.Resources), len(doc.Items), nil
}
