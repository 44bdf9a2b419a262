package booking

import (
	"context"
	"time"

	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/outbox"
)

// Tx is the set of operations available inside the per-staff atomic unit.
type Tx interface {
	// CountOccupying counts pending/confirmed bookings for the staff member
	// whose interval overlaps [start, end), excluding excludeBookingID when
	// non-empty (used by reschedule to ignore the booking being moved).
	CountOccupying(ctx context.Context, tenantID, staffID string, start, end time.Time, excludeBookingID string) (int, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingForUpdate(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
	UpdateBookingInterval(ctx context.Context, tenantID, bookingID string, start, end time.Time) error
	UpdateBookingStatus(ctx context.Context, tenantID, bookingID string, status model.BookingStatus, reason string, cancelledAt *time.Time) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Store provides the serialization point required by the capacity invariant:
// writes touching the same tenant and staff member are mutually exclusive,
// writes touching different staff run in parallel.
type Store interface {
	WithStaffTx(ctx context.Context, tenantID, staffID string, fn func(Tx) error) error
	GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
}
