package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookline/scheduling/internal/booking"
	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/outbox"
	"github.com/bookline/scheduling/libs/db"
)

// BookingStore is the Postgres-backed booking store. Write serialization per
// staff member uses a transaction-scoped advisory lock, so reserves for
// different staff never contend. A btree_gist exclusion constraint backs the
// common capacity-1 case structurally (see migrations).
type BookingStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingStore(pool *db.Pool, outboxRepo *outbox.Repository) *BookingStore {
	return &BookingStore{pool: pool, outbox: outboxRepo}
}

func (s *BookingStore) WithStaffTx(ctx context.Context, tenantID, staffID string, fn func(booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock key is (tenant, staff); released at commit/rollback.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID+":"+staffID); err != nil {
		return err
	}
	if err := fn(&pgTx{tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *BookingStore) GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx, selectBooking+` WHERE id = $1`, bookingID))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, model.ErrNotFound
		}
		return model.Booking{}, err
	}
	if b.TenantID != tenantID {
		return model.Booking{}, model.ErrTenantMismatch
	}
	return b, nil
}

// ListOccupying returns pending/confirmed bookings overlapping [from, to).
func (s *BookingStore) ListOccupying(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, selectBooking+`
		WHERE tenant_id = $1
			AND staff_id = $2
			AND status IN ('pending', 'confirmed')
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *BookingStore) ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, selectBooking+`
		WHERE tenant_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) CountOccupying(ctx context.Context, tenantID, staffID string, start, end time.Time, excludeBookingID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE tenant_id = $1
			AND staff_id = $2
			AND status IN ('pending', 'confirmed')
			AND start_time < $4
			AND end_time > $3
			AND ($5 = '' OR id::text <> $5)
	`, tenantID, staffID, start, end, excludeBookingID).Scan(&n)
	return n, err
}

func (t *pgTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	slot, err := t.freeCapacitySlot(ctx, b.TenantID, b.StaffID, b.StartTime, b.EndTime, "")
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO bookings (id, tenant_id, staff_id, service_id, outlet_id, start_time, end_time, status, capacity_slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.TenantID, b.StaffID, b.ServiceID, b.OutletID, b.StartTime, b.EndTime, b.Status, slot, b.CreatedAt)
	if IsConflict(err) {
		return model.ErrSlotUnavailable
	}
	return err
}

// freeCapacitySlot picks the lowest slot number not held by an occupying
// booking overlapping [start, end). Safe because every booking write for a
// staff member runs under the same advisory lock.
func (t *pgTx) freeCapacitySlot(ctx context.Context, tenantID, staffID string, start, end time.Time, excludeBookingID string) (int, error) {
	var slot int
	err := t.tx.QueryRow(ctx, `
		WITH occupied AS (
			SELECT capacity_slot
			FROM bookings
			WHERE tenant_id = $1
				AND staff_id = $2
				AND status IN ('pending', 'confirmed')
				AND start_time < $4
				AND end_time > $3
				AND ($5 = '' OR id::text <> $5)
		)
		SELECT min(s)
		FROM generate_series(0, (SELECT count(*) FROM occupied)) AS s
		WHERE s NOT IN (SELECT capacity_slot FROM occupied)
	`, tenantID, staffID, start, end, excludeBookingID).Scan(&slot)
	return slot, err
}

func (t *pgTx) BookingForUpdate(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, bookingID))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, model.ErrNotFound
		}
		return model.Booking{}, err
	}
	if b.TenantID != tenantID {
		return model.Booking{}, model.ErrTenantMismatch
	}
	return b, nil
}

func (t *pgTx) UpdateBookingInterval(ctx context.Context, tenantID, bookingID string, start, end time.Time) error {
	var staffID string
	if err := t.tx.QueryRow(ctx, `
		SELECT staff_id::text FROM bookings WHERE tenant_id = $1 AND id = $2
	`, tenantID, bookingID).Scan(&staffID); err != nil {
		if IsNotFound(err) {
			return model.ErrNotFound
		}
		return err
	}
	slot, err := t.freeCapacitySlot(ctx, tenantID, staffID, start, end, bookingID)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $3, end_time = $4, capacity_slot = $5
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, bookingID, start, end, slot)
	if IsConflict(err) {
		return model.ErrSlotUnavailable
	}
	return err
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, tenantID, bookingID string, status model.BookingStatus, reason string, cancelledAt *time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3, cancel_reason = $4, cancelled_at = $5
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, bookingID, status, reason, cancelledAt)
	return err
}

func (t *pgTx) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

const selectBooking = `
	SELECT id::text, tenant_id::text, staff_id::text, service_id::text, outlet_id::text,
		start_time, end_time, status, COALESCE(cancel_reason, ''), cancelled_at, created_at
	FROM bookings`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.StaffID,
		&b.ServiceID,
		&b.OutletID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.CancelReason,
		&cancelledAt,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
