// Package booking is the transactional gatekeeper for booking writes. The
// slot grid is advisory; every reserve and reschedule re-validates against
// live state inside a per-staff atomic unit so a staff member is never
// observed over capacity.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/scheduling/internal/availability"
	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/outbox"
	"github.com/bookline/scheduling/internal/recurrence"
)

type AvailabilitySource interface {
	OpenIntervals(ctx context.Context, tenantID, staffID, serviceID string, day time.Time) ([]availability.Interval, error)
}

type CatalogSource interface {
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
}

type Guard struct {
	store        Store
	availability AvailabilitySource
	catalog      CatalogSource
	logger       *slog.Logger
}

func NewGuard(store Store, avail AvailabilitySource, catalog CatalogSource, logger *slog.Logger) *Guard {
	return &Guard{store: store, availability: avail, catalog: catalog, logger: logger}
}

type ReserveRequest struct {
	TenantID  string
	StaffID   string
	ServiceID string
	OutletID  string
	StartTime time.Time
}

// Reserve re-checks availability and capacity against the authoritative store
// and inserts the booking as one atomic unit. A rejected attempt leaves no
// trace.
func (g *Guard) Reserve(ctx context.Context, req ReserveRequest) (model.Booking, error) {
	if req.StartTime.IsZero() {
		return model.Booking{}, model.Invalid("start_at", "required")
	}
	svc, err := g.catalog.GetService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		return model.Booking{}, err
	}
	staff, err := g.catalog.GetStaff(ctx, req.TenantID, req.StaffID)
	if err != nil {
		return model.Booking{}, err
	}
	if !svc.AssignedTo(staff.ID) {
		return model.Booking{}, model.Invalid("staff_id", "staff not assigned to service")
	}

	start := req.StartTime.UTC()
	end := start.Add(svc.Span())
	b := model.Booking{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		OutletID:  req.OutletID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	err = g.store.WithStaffTx(ctx, req.TenantID, req.StaffID, func(tx Tx) error {
		ok, err := g.withinAvailability(ctx, req.TenantID, req.StaffID, req.ServiceID, start, end)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrSlotUnavailable
		}
		n, err := tx.CountOccupying(ctx, req.TenantID, req.StaffID, start, end, "")
		if err != nil {
			return err
		}
		if n >= staff.EffectiveCapacity() {
			return model.ErrSlotUnavailable
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		return g.emit(ctx, tx, &b, outbox.EventBookingReserved, "")
	})
	if err != nil {
		return model.Booking{}, err
	}
	g.logger.Info("booking reserved",
		"booking_id", b.ID, "tenant_id", b.TenantID, "staff_id", b.StaffID,
		"start", b.StartTime, "end", b.EndTime)
	return b, nil
}

// Reschedule moves a live booking to a new interval. Releasing the old
// interval and reserving the new one happen in the same atomic unit, so the
// staff member is never observed over capacity nor under-booked in between.
func (g *Guard) Reschedule(ctx context.Context, tenantID, bookingID string, newStart time.Time) (model.Booking, error) {
	if newStart.IsZero() {
		return model.Booking{}, model.Invalid("new_start", "required")
	}
	current, err := g.store.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	svc, err := g.catalog.GetService(ctx, tenantID, current.ServiceID)
	if err != nil {
		return model.Booking{}, err
	}
	staff, err := g.catalog.GetStaff(ctx, tenantID, current.StaffID)
	if err != nil {
		return model.Booking{}, err
	}

	start := newStart.UTC()
	end := start.Add(svc.Span())

	var updated model.Booking
	err = g.store.WithStaffTx(ctx, tenantID, current.StaffID, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, tenantID, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.Occupying() {
			return model.ErrInvalidTransition
		}
		ok, err := g.withinAvailability(ctx, tenantID, b.StaffID, b.ServiceID, start, end)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrSlotUnavailable
		}
		n, err := tx.CountOccupying(ctx, tenantID, b.StaffID, start, end, b.ID)
		if err != nil {
			return err
		}
		if n >= staff.EffectiveCapacity() {
			return model.ErrSlotUnavailable
		}
		if err := tx.UpdateBookingInterval(ctx, tenantID, b.ID, start, end); err != nil {
			return err
		}
		updated = b
		updated.StartTime = start
		updated.EndTime = end
		return g.emit(ctx, tx, &updated, outbox.EventBookingRescheduled, "")
	})
	if err != nil {
		return model.Booking{}, err
	}
	g.logger.Info("booking rescheduled",
		"booking_id", updated.ID, "tenant_id", tenantID, "staff_id", updated.StaffID,
		"start", start, "end", end)
	return updated, nil
}

// Release stops a booking from occupying capacity (cancel or no-show). It is
// idempotent: releasing an already-released booking is a no-op.
func (g *Guard) Release(ctx context.Context, tenantID, bookingID, reason string, to model.BookingStatus) (model.Booking, error) {
	if to != model.StatusCancelled && to != model.StatusNoShow {
		return model.Booking{}, model.Invalid("status", "release target must be cancelled or no_show")
	}
	return g.transition(ctx, tenantID, bookingID, to, reason, outbox.EventBookingReleased)
}

// Confirm moves a pending booking to confirmed.
func (g *Guard) Confirm(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	return g.transition(ctx, tenantID, bookingID, model.StatusConfirmed, "", outbox.EventBookingConfirmed)
}

// Complete marks a confirmed booking as done.
func (g *Guard) Complete(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	return g.transition(ctx, tenantID, bookingID, model.StatusCompleted, "", outbox.EventBookingCompleted)
}

func (g *Guard) transition(ctx context.Context, tenantID, bookingID string, to model.BookingStatus, reason, eventType string) (model.Booking, error) {
	current, err := g.store.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}

	var out model.Booking
	err = g.store.WithStaffTx(ctx, tenantID, current.StaffID, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, tenantID, bookingID)
		if err != nil {
			return err
		}
		if b.Status == to {
			out = b
			return nil
		}
		if !b.Status.CanTransitionTo(to) {
			return model.ErrInvalidTransition
		}
		var cancelledAt *time.Time
		if to == model.StatusCancelled || to == model.StatusNoShow {
			now := time.Now().UTC()
			cancelledAt = &now
		}
		if err := tx.UpdateBookingStatus(ctx, tenantID, b.ID, to, reason, cancelledAt); err != nil {
			return err
		}
		out = b
		out.Status = to
		out.CancelReason = reason
		out.CancelledAt = cancelledAt
		return g.emit(ctx, tx, &out, eventType, reason)
	})
	if err != nil {
		return model.Booking{}, err
	}
	g.logger.Info("booking status changed",
		"booking_id", bookingID, "tenant_id", tenantID, "status", string(out.Status))
	return out, nil
}

// withinAvailability verifies the interval fits entirely inside one open
// interval for its date. The world may have changed since the grid was read.
func (g *Guard) withinAvailability(ctx context.Context, tenantID, staffID, serviceID string, start, end time.Time) (bool, error) {
	open, err := g.availability.OpenIntervals(ctx, tenantID, staffID, serviceID, recurrence.DateOf(start))
	if err != nil {
		return false, err
	}
	want := availability.Interval{Start: start, End: end}
	for _, iv := range open {
		if iv.Contains(want) {
			return true, nil
		}
	}
	return false, nil
}

func (g *Guard) emit(ctx context.Context, tx Tx, b *model.Booking, eventType, reason string) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id": b.ID,
		"tenant_id":  b.TenantID,
		"staff_id":   b.StaffID,
		"service_id": b.ServiceID,
		"outlet_id":  b.OutletID,
		"start_at":   b.StartTime.UTC().Format(time.RFC3339),
		"end_at":     b.EndTime.UTC().Format(time.RFC3339),
		"status":     string(b.Status),
		"reason":     reason,
	})
	if err != nil {
		return err
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
