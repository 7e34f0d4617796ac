package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/convergeai/core/store"
)

func (d *DB) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	stmt := `INSERT INTO booking (
			order_id, session_id, user_id, service_type, preferred_date, preferred_time,
			location, quantity, payment_method, status, created_ts, updated_ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	_, err := d.db.ExecContext(ctx, stmt,
		create.OrderID, create.SessionID, create.UserID, create.ServiceType, create.PreferredDate, create.PreferredTime,
		create.Location, create.Quantity, create.PaymentMethod, create.Status, create.CreatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return create, nil
}

func (d *DB) GetBooking(ctx context.Context, orderID string) (*store.Booking, error) {
	query := `SELECT order_id, session_id, user_id, service_type, preferred_date, preferred_time,
			location, quantity, payment_method, status, refund_amount, cancel_reason, created_ts, updated_ts
		FROM booking WHERE order_id = $1`

	b := &store.Booking{}
	err := d.db.QueryRowContext(ctx, query, orderID).Scan(
		&b.OrderID, &b.SessionID, &b.UserID, &b.ServiceType, &b.PreferredDate, &b.PreferredTime,
		&b.Location, &b.Quantity, &b.PaymentMethod, &b.Status, &b.RefundAmount, &b.CancelReason, &b.CreatedTs, &b.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking %s: %w", orderID, err)
	}

	return b, nil
}

func (d *DB) UpdateBooking(ctx context.Context, update *store.UpdateBooking) (*store.Booking, error) {
	set, args := []string{}, []any{}

	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.RefundAmount != nil {
		set, args = append(set, "refund_amount = "+placeholder(len(args)+1)), append(args, *update.RefundAmount)
	}
	if update.CancelReason != nil {
		set, args = append(set, "cancel_reason = "+placeholder(len(args)+1)), append(args, *update.CancelReason)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, update.UpdatedTs)

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.OrderID)
	stmt := `UPDATE booking SET ` + strings.Join(set, ", ") + ` WHERE order_id = ` + placeholder(len(args)) + `
		RETURNING order_id, session_id, user_id, service_type, preferred_date, preferred_time,
			location, quantity, payment_method, status, refund_amount, cancel_reason, created_ts, updated_ts`

	b := &store.Booking{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&b.OrderID, &b.SessionID, &b.UserID, &b.ServiceType, &b.PreferredDate, &b.PreferredTime,
		&b.Location, &b.Quantity, &b.PaymentMethod, &b.Status, &b.RefundAmount, &b.CancelReason, &b.CreatedTs, &b.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", update.OrderID, err)
	}

	return b, nil
}

func (d *DB) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.SessionID != nil {
		where, args = append(where, "session_id = "+placeholder(len(args)+1)), append(args, *find.SessionID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}

	query := `SELECT order_id, session_id, user_id, service_type, preferred_date, preferred_time,
			location, quantity, payment_method, status, refund_amount, cancel_reason, created_ts, updated_ts
		FROM booking WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Booking, 0)
	for rows.Next() {
		b := &store.Booking{}
		if err := rows.Scan(&b.OrderID, &b.SessionID, &b.UserID, &b.ServiceType, &b.PreferredDate, &b.PreferredTime,
			&b.Location, &b.Quantity, &b.PaymentMethod, &b.Status, &b.RefundAmount, &b.CancelReason, &b.CreatedTs, &b.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	return list, nil
}
