package repository

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/reservation-engine/internal/model"
)

// SlotRepo provides access to the availability_slots table.  Rows are
// keyed by (resource_id, sub_resource_id, slot_date, slot_time); an empty
// slot_time marks a whole-day unit.
type SlotRepo struct {
	q dbtx
}

// Slots loads stored rows for units.  It scans the date span covered by
// units and keeps only the requested (date, time) pairs.
func (r *SlotRepo) Slots(ctx context.Context, key model.SlotKey, units []model.SlotUnit) (map[model.SlotUnit]model.AvailabilitySlot, error) {
	out := make(map[model.SlotUnit]model.AvailabilitySlot, len(units))
	if len(units) == 0 {
		return out, nil
	}
	wanted := make(map[model.SlotUnit]bool, len(units))
	dates := make([]string, 0, len(units))
	for _, u := range units {
		wanted[u] = true
		dates = append(dates, u.Date)
	}
	sort.Strings(dates)

	const q = `SELECT slot_date, slot_time, capacity, available, price, min_stay, is_available
FROM availability_slots
WHERE resource_id = ? AND sub_resource_id = ? AND slot_date BETWEEN ? AND ?`
	rows, err := r.q.QueryContext(ctx, q, key.ResourceID, key.SubResourceID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			date  time.Time
			slot  = model.AvailabilitySlot{Key: key}
			price decimal.NullDecimal
		)
		if err := rows.Scan(&date, &slot.Unit.Time, &slot.Capacity, &slot.Available, &price, &slot.MinStay, &slot.IsAvailable); err != nil {
			return nil, err
		}
		slot.Unit.Date = date.Format(model.DateLayout)
		if !wanted[slot.Unit] {
			continue
		}
		if price.Valid {
			p := price.Decimal
			slot.Price = &p
		}
		out[slot.Unit] = slot
	}
	return out, rows.Err()
}

// Ensure inserts default rows for missing units in a single statement.
// Existing rows are brought to the current capacity: available moves by
// the capacity delta and never drops below zero.  MySQL applies the
// assignments left to right, so available still sees the old capacity.
func (r *SlotRepo) Ensure(ctx context.Context, key model.SlotKey, units []model.SlotUnit, capacity int) error {
	if len(units) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO availability_slots (resource_id, sub_resource_id, slot_date, slot_time, capacity, available) VALUES `)
	args := make([]any, 0, len(units)*6)
	for i, u := range units {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, key.ResourceID, key.SubResourceID, u.Date, u.Time, capacity, capacity)
	}
	b.WriteString(` ON DUPLICATE KEY UPDATE available = LEAST(VALUES(capacity), GREATEST(0, available + VALUES(capacity) - capacity)), capacity = VALUES(capacity)`)
	_, err := r.q.ExecContext(ctx, b.String(), args...)
	return err
}

// Decrement is the atomic conditional update that keeps capacity from
// going negative: the row only changes when it is open and still has qty
// left.
func (r *SlotRepo) Decrement(ctx context.Context, key model.SlotKey, unit model.SlotUnit, qty int) (bool, error) {
	const q = `UPDATE availability_slots SET available = available - ?
WHERE resource_id = ? AND sub_resource_id = ? AND slot_date = ? AND slot_time = ?
AND is_available = 1 AND available >= ?`
	res, err := r.q.ExecContext(ctx, q, qty, key.ResourceID, key.SubResourceID, unit.Date, unit.Time, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Increment restores qty, capped at the row capacity.
func (r *SlotRepo) Increment(ctx context.Context, key model.SlotKey, unit model.SlotUnit, qty int) error {
	const q = `UPDATE availability_slots SET available = LEAST(capacity, available + ?)
WHERE resource_id = ? AND sub_resource_id = ? AND slot_date = ? AND slot_time = ?`
	_, err := r.q.ExecContext(ctx, q, qty, key.ResourceID, key.SubResourceID, unit.Date, unit.Time)
	return err
}

// Put upserts a full row.
func (r *SlotRepo) Put(ctx context.Context, s model.AvailabilitySlot) error {
	const q = `INSERT INTO availability_slots
(resource_id, sub_resource_id, slot_date, slot_time, capacity, available, price, min_stay, is_available)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE capacity = VALUES(capacity), available = VALUES(available), price = VALUES(price),
min_stay = VALUES(min_stay), is_available = VALUES(is_available)`
	var price decimal.NullDecimal
	if s.Price != nil {
		price = decimal.NullDecimal{Decimal: *s.Price, Valid: true}
	}
	_, err := r.q.ExecContext(ctx, q, s.Key.ResourceID, s.Key.SubResourceID, s.Unit.Date, s.Unit.Time,
		s.Capacity, s.Available, price, s.MinStay, s.IsAvailable)
	return err
}
