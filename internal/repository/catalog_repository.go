package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/reservation-engine/internal/catalog"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// CatalogRepo reads resources and menu items.  Soft-deleted rows
// (deleted_at set) do not resolve.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

var (
	_ catalog.Catalog = (*CatalogRepo)(nil)
	_ catalog.Editor  = (*CatalogRepo)(nil)
)

const resourceColumns = `id, tenant_id, COALESCE(parent_id, ''), name, kind, capacity_unit, total_capacity, max_occupancy,
base_rate, currency, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (model.Resource, error) {
	var res model.Resource
	err := row.Scan(
		&res.ID, &res.TenantID, &res.ParentID, &res.Name, &res.Kind, &res.CapacityUnit, &res.TotalCapacity, &res.MaxOccupancy,
		&res.BaseRate, &res.Currency, &res.Active, &res.CreatedAt, &res.UpdatedAt,
	)
	return res, err
}

func (r *CatalogRepo) Get(ctx context.Context, id string) (*model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources WHERE id = ? AND deleted_at IS NULL`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

func (r *CatalogRepo) Children(ctx context.Context, parentID string) ([]model.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM resources WHERE parent_id = ? AND deleted_at IS NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateResource writes the editable columns.  The row is matched on id
// alone; MySQL reports zero affected rows for an unchanged row, so
// existence is checked separately.
func (r *CatalogRepo) UpdateResource(ctx context.Context, res model.Resource) error {
	const q = `UPDATE resources SET name = ?, total_capacity = ?, max_occupancy = ?, base_rate = ?, active = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, q, res.Name, res.TotalCapacity, res.MaxOccupancy, res.BaseRate, res.Active, res.UpdatedAt, res.ID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, err := r.Get(ctx, res.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *CatalogRepo) IsActive(ctx context.Context, id string) (bool, error) {
	res, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return res.Active, nil
}

func (r *CatalogRepo) GetItem(ctx context.Context, id string) (*model.MenuItem, error) {
	const q = `SELECT id, tenant_id, resource_id, name, price, currency, available
FROM menu_items WHERE id = ? AND deleted_at IS NULL`
	var it model.MenuItem
	err := r.db.QueryRowContext(ctx, q, id).Scan(&it.ID, &it.TenantID, &it.ResourceID, &it.Name, &it.Price, &it.Currency, &it.Available)
	if err != nil {
		return nil, notFound(err)
	}
	return &it, nil
}
