package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// HoldRepo persists reservation tokens in reservation_holds.  The units
// column stores the exact slot units a reservation decremented as JSON.
type HoldRepo struct {
	q dbtx
}

func (r *HoldRepo) Create(ctx context.Context, tok model.ReservationToken) error {
	units, err := json.Marshal(tok.Units)
	if err != nil {
		return fmt.Errorf("encode units: %w", err)
	}
	const q = `INSERT INTO reservation_holds (id, resource_id, sub_resource_id, units, quantity, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.q.ExecContext(ctx, q, tok.ID, tok.Key.ResourceID, tok.Key.SubResourceID, units, tok.Quantity, tok.CreatedAt.UTC())
	return err
}

func (r *HoldRepo) Get(ctx context.Context, id string) (*model.ReservationToken, error) {
	const q = `SELECT id, resource_id, sub_resource_id, units, quantity, created_at, released_at FROM reservation_holds WHERE id = ?`
	var (
		tok      model.ReservationToken
		units    []byte
		released sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, q, id).Scan(&tok.ID, &tok.Key.ResourceID, &tok.Key.SubResourceID, &units, &tok.Quantity, &tok.CreatedAt, &released)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(units, &tok.Units); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	if released.Valid {
		at := released.Time
		tok.ReleasedAt = &at
	}
	return &tok, nil
}

// MarkReleased only updates a hold that is still open, so concurrent
// releases of one token restore capacity once.
func (r *HoldRepo) MarkReleased(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `UPDATE reservation_holds SET released_at = ? WHERE id = ? AND released_at IS NULL`
	res, err := r.q.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
