// Package catalog defines the read-only lookup of bookable resources and
// orderable items.  Implementations live in the repository (MySQL) and
// memstore packages; Cached wraps any of them with a Redis read-through
// cache.
package catalog

import (
	"context"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// Catalog resolves resources and menu items.  Get returns
// apperr.ErrNotFound when the id does not resolve to an existing,
// non-deleted resource.  An inactive resource is still returned; callers
// decide how to surface it.
type Catalog interface {
	Get(ctx context.Context, resourceID string) (*model.Resource, error)
	IsActive(ctx context.Context, resourceID string) (bool, error)
	GetItem(ctx context.Context, itemID string) (*model.MenuItem, error)
	// Children lists the non-deleted sub-resources (room types, tables)
	// of parentID ordered by id.
	Children(ctx context.Context, parentID string) ([]model.Resource, error)
}

// Editor persists resource changes.  UpdateResource returns
// apperr.ErrNotFound when the resource does not exist.
type Editor interface {
	UpdateResource(ctx context.Context, r model.Resource) error
}
