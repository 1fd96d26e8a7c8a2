package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
	"github.com/iliyamo/reservation-engine/internal/store"
)

// BookingRepo persists bookings with their order lines and status
// history.  When lock is set (inside a unit of work) GetForUpdate takes a
// row lock with SELECT ... FOR UPDATE.
type BookingRepo struct {
	q    dbtx
	lock bool
}

const bookingColumns = `id, reference, kind, tenant_id, resource_id, sub_resource_id,
customer_id, customer_name, customer_email, customer_phone,
window_kind, check_in, check_out, slot_date, slot_time, guests, quantity, delivery, catering,
rate, nights, subtotal, taxes, fees, discount, tip, total, currency,
status, payment_reference, payment_status, notes, reservation_token, created_at, updated_at`

// Create inserts the booking row, its lines and its history.  A reference
// collision on uq_bookings_reference surfaces as ErrDuplicateReference.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	delivery, err := nullJSON(b.Delivery)
	if err != nil {
		return err
	}
	catering, err := nullJSON(b.Catering)
	if err != nil {
		return err
	}
	checkIn, checkOut, slotDate := windowColumns(b.Window)
	f := b.Financials

	_, err = r.q.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Reference, b.Kind, b.TenantID, b.ResourceID, b.SubResourceID,
		b.Customer.CustomerID, b.Customer.Name, b.Customer.Email, b.Customer.Phone,
		b.Window.Kind, checkIn, checkOut, slotDate, b.Window.Time, b.Guests, b.Quantity, delivery, catering,
		f.Rate, f.Nights, f.Subtotal, f.Taxes, f.Fees, f.Discount, f.Tip, f.Total, f.Currency,
		b.Status, b.Payment.Reference, b.Payment.Status, b.Notes, b.ReservationToken, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicate(err) {
			return apperr.ErrDuplicateReference
		}
		return err
	}

	for i := range b.Lines {
		l := &b.Lines[i]
		custom, err := nullJSON(l.Customizations)
		if err != nil {
			return err
		}
		res, err := r.q.ExecContext(ctx, `INSERT INTO booking_order_lines
(booking_id, item_id, name, quantity, unit_price, line_total, instructions, customizations)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, l.ItemID, l.Name, l.Quantity, l.UnitPrice, l.LineTotal, l.Instructions, custom)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		l.ID = uint64(id)
		l.BookingID = b.ID
	}
	for _, h := range b.History {
		if err := r.AppendHistory(ctx, b.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id string) (*model.Booking, error) {
	return r.one(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

func (r *BookingRepo) GetForUpdate(ctx context.Context, id string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if r.lock {
		q += ` FOR UPDATE`
	}
	return r.one(ctx, q, id)
}

func (r *BookingRepo) GetByReference(ctx context.Context, reference string) (*model.Booking, error) {
	return r.one(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference = ?`, reference)
}

func (r *BookingRepo) one(ctx context.Context, q string, arg any) (*model.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, q, arg))
	if err != nil {
		return nil, notFound(err)
	}
	if err := r.loadChildren(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns matching bookings newest first.  Customer and tenant
// filters are OR-ed so an actor sees what they requested and what they own.
func (r *BookingRepo) List(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	switch {
	case f.CustomerID != "" && f.TenantID != "":
		where = append(where, "(customer_id = ? OR tenant_id = ?)")
		args = append(args, f.CustomerID, f.TenantID)
	case f.CustomerID != "":
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	case f.TenantID != "":
		where = append(where, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update writes the mutable columns.  Lines and history are not touched.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	f := b.Financials
	_, err := r.q.ExecContext(ctx, `UPDATE bookings SET status = ?, payment_reference = ?, payment_status = ?,
rate = ?, nights = ?, subtotal = ?, taxes = ?, fees = ?, discount = ?, tip = ?, total = ?,
notes = ?, reservation_token = ?, updated_at = ? WHERE id = ?`,
		b.Status, b.Payment.Reference, b.Payment.Status,
		f.Rate, f.Nights, f.Subtotal, f.Taxes, f.Fees, f.Discount, f.Tip, f.Total,
		b.Notes, b.ReservationToken, b.UpdatedAt.UTC(), b.ID)
	return err
}

func (r *BookingRepo) AppendHistory(ctx context.Context, bookingID string, c model.StatusChange) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO booking_status_events (booking_id, status, at) VALUES (?, ?, ?)`,
		bookingID, c.Status, c.At.UTC())
	return err
}

// Delete removes the booking; lines and history cascade.
func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *BookingRepo) loadChildren(ctx context.Context, b *model.Booking) error {
	rows, err := r.q.QueryContext(ctx, `SELECT id, item_id, name, quantity, unit_price, line_total, instructions, customizations
FROM booking_order_lines WHERE booking_id = ? ORDER BY id`, b.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			l      = model.OrderLine{BookingID: b.ID}
			instr  sql.NullString
			custom []byte
		)
		if err := rows.Scan(&l.ID, &l.ItemID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal, &instr, &custom); err != nil {
			rows.Close()
			return err
		}
		l.Instructions = instr.String
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &l.Customizations); err != nil {
				rows.Close()
				return fmt.Errorf("decode customizations: %w", err)
			}
		}
		b.Lines = append(b.Lines, l)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = r.q.QueryContext(ctx, `SELECT status, at FROM booking_status_events WHERE booking_id = ? ORDER BY at, id`, b.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var c model.StatusChange
		if err := rows.Scan(&c.Status, &c.At); err != nil {
			rows.Close()
			return err
		}
		b.History = append(b.History, c)
	}
	return rows.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b                           model.Booking
		checkIn, checkOut, slotDate sql.NullTime
		delivery, catering          []byte
		notes                       sql.NullString
	)
	f := &b.Financials
	err := s.Scan(
		&b.ID, &b.Reference, &b.Kind, &b.TenantID, &b.ResourceID, &b.SubResourceID,
		&b.Customer.CustomerID, &b.Customer.Name, &b.Customer.Email, &b.Customer.Phone,
		&b.Window.Kind, &checkIn, &checkOut, &slotDate, &b.Window.Time, &b.Guests, &b.Quantity, &delivery, &catering,
		&f.Rate, &f.Nights, &f.Subtotal, &f.Taxes, &f.Fees, &f.Discount, &f.Tip, &f.Total, &f.Currency,
		&b.Status, &b.Payment.Reference, &b.Payment.Status, &notes, &b.ReservationToken, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Window.CheckIn = dayOf(checkIn)
	b.Window.CheckOut = dayOf(checkOut)
	b.Window.Date = dayOf(slotDate)
	b.Notes = notes.String
	if len(delivery) > 0 {
		b.Delivery = &model.DeliveryDetails{}
		if err := json.Unmarshal(delivery, b.Delivery); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
	}
	if len(catering) > 0 {
		b.Catering = &model.CateringDetails{}
		if err := json.Unmarshal(catering, b.Catering); err != nil {
			return nil, fmt.Errorf("decode catering: %w", err)
		}
	}
	return &b, nil
}

func windowColumns(w model.Window) (checkIn, checkOut, slotDate any) {
	if w.Kind == model.WindowDateRange {
		return w.CheckIn.Format(model.DateLayout), w.CheckOut.Format(model.DateLayout), nil
	}
	return nil, nil, w.Date.Format(model.DateLayout)
}

func dayOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return model.Day(t.Time)
}

// nullJSON encodes v, mapping nil pointers and empty maps to SQL NULL.
func nullJSON[T any](v T) (any, error) {
	switch x := any(v).(type) {
	case *model.DeliveryDetails:
		if x == nil {
			return nil, nil
		}
	case *model.CateringDetails:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return raw, nil
}
