package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookline/scheduling/internal/availability"
	"github.com/bookline/scheduling/internal/booking"
	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/outbox"
	"github.com/bookline/scheduling/internal/storage"
)

const (
	tenant  = "t1"
	staffID = "staff-1"
	svcID   = "svc-1"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, capacity int) (*booking.Guard, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	mem.PutService(model.Service{
		ID:           svcID,
		TenantID:     tenant,
		DurationMins: 60,
		StaffIDs:     []string{staffID},
	})
	mem.PutStaff(model.Staff{
		ID:                   staffID,
		TenantID:             tenant,
		Capacity:             capacity,
		AcceptsOnlineBooking: true,
	})

	end := day.AddDate(1, 0, 0)
	rule := model.AvailabilityRule{
		ID:                "rule-1",
		TenantID:          tenant,
		StaffID:           staffID,
		AnchorDate:        day,
		StartMinute:       9 * 60,
		EndMinute:         17 * 60,
		Kind:              model.RuleWorkingHours,
		Recurrence:        model.RecurDaily,
		RecurrenceEndDate: &end,
	}
	if err := mem.CreateRule(context.Background(), &rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := booking.NewGuard(mem, availability.NewResolver(mem), mem, logger)
	return guard, mem
}

func reserveAt(t *testing.T, g *booking.Guard, start time.Time) model.Booking {
	t.Helper()
	b, err := g.Reserve(context.Background(), booking.ReserveRequest{
		TenantID:  tenant,
		StaffID:   staffID,
		ServiceID: svcID,
		StartTime: start,
	})
	if err != nil {
		t.Fatalf("reserve at %s failed: %v", start.Format("15:04"), err)
	}
	return b
}

func TestReserveRejectsOverlap(t *testing.T) {
	g, _ := newFixture(t, 1)
	reserveAt(t, g, day.Add(10*time.Hour))

	_, err := g.Reserve(context.Background(), booking.ReserveRequest{
		TenantID: tenant, StaffID: staffID, ServiceID: svcID,
		StartTime: day.Add(10*time.Hour + 30*time.Minute),
	})
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestReserveAllowsTouchingBookings(t *testing.T) {
	g, _ := newFixture(t, 1)
	reserveAt(t, g, day.Add(10*time.Hour))
	// Ends at 11:00; a booking starting at 11:00 does not conflict.
	reserveAt(t, g, day.Add(11*time.Hour))
}

func TestReserveOutsideAvailabilityRejected(t *testing.T) {
	g, _ := newFixture(t, 1)
	_, err := g.Reserve(context.Background(), booking.ReserveRequest{
		TenantID: tenant, StaffID: staffID, ServiceID: svcID,
		StartTime: day.Add(18 * time.Hour),
	})
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable outside working hours, got %v", err)
	}
	// 16:30 starts inside but the hour spills past 17:00.
	_, err = g.Reserve(context.Background(), booking.ReserveRequest{
		TenantID: tenant, StaffID: staffID, ServiceID: svcID,
		StartTime: day.Add(16*time.Hour + 30*time.Minute),
	})
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for spillover, got %v", err)
	}
}

func TestReserveCapacityTwo(t *testing.T) {
	g, _ := newFixture(t, 2)
	start := day.Add(10 * time.Hour)
	reserveAt(t, g, start)
	reserveAt(t, g, start)

	_, err := g.Reserve(context.Background(), booking.ReserveRequest{
		TenantID: tenant, StaffID: staffID, ServiceID: svcID,
		StartTime: start,
	})
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected third overlapping reserve to fail, got %v", err)
	}
}

func TestCancelFreesInterval(t *testing.T) {
	g, mem := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))

	released, err := g.Release(context.Background(), tenant, b.ID, "client called", model.StatusCancelled)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if released.Status != model.StatusCancelled || released.CancelledAt == nil {
		t.Fatalf("expected cancelled booking with timestamp, got %+v", released)
	}
	if released.CancelReason != "client called" {
		t.Fatalf("expected cancel reason recorded, got %q", released.CancelReason)
	}

	// The interval is free again.
	reserveAt(t, g, day.Add(10*time.Hour))

	events := mem.Events()
	if len(events) != 3 {
		t.Fatalf("expected reserved+released+reserved events, got %d", len(events))
	}
	if events[1].EventType != outbox.EventBookingReleased {
		t.Fatalf("expected release event, got %s", events[1].EventType)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	g, mem := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))

	if _, err := g.Release(context.Background(), tenant, b.ID, "", model.StatusCancelled); err != nil {
		t.Fatalf("first release failed: %v", err)
	}
	again, err := g.Release(context.Background(), tenant, b.ID, "", model.StatusCancelled)
	if err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
	if again.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", again.Status)
	}
	// No duplicate event for the no-op.
	if n := len(mem.Events()); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
}

func TestReleaseRejectsCompletedBooking(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))
	if _, err := g.Confirm(context.Background(), tenant, b.ID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := g.Complete(context.Background(), tenant, b.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := g.Release(context.Background(), tenant, b.ID, "", model.StatusCancelled); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for completed booking, got %v", err)
	}
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))
	if _, err := g.Complete(context.Background(), tenant, b.ID); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition completing a pending booking, got %v", err)
	}
}

func TestReleaseTargetValidated(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))
	if _, err := g.Release(context.Background(), tenant, b.ID, "", model.StatusCompleted); !model.IsValidation(err) {
		t.Fatalf("expected validation error for release to completed, got %v", err)
	}
}

func TestReschedule(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))

	moved, err := g.Reschedule(context.Background(), tenant, b.ID, day.Add(14*time.Hour))
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !moved.StartTime.Equal(day.Add(14*time.Hour)) || !moved.EndTime.Equal(day.Add(15*time.Hour)) {
		t.Fatalf("unexpected interval after reschedule: %+v", moved)
	}

	// The old interval is free again.
	reserveAt(t, g, day.Add(10*time.Hour))
}

func TestRescheduleOntoOccupiedSlotRejected(t *testing.T) {
	g, _ := newFixture(t, 1)
	reserveAt(t, g, day.Add(14*time.Hour))
	b := reserveAt(t, g, day.Add(10*time.Hour))

	_, err := g.Reschedule(context.Background(), tenant, b.ID, day.Add(14*time.Hour+30*time.Minute))
	if !errors.Is(err, model.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestRescheduleOntoOwnIntervalAllowed(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))

	// Shifting by 30 minutes overlaps the booking's own interval only.
	if _, err := g.Reschedule(context.Background(), tenant, b.ID, day.Add(10*time.Hour+30*time.Minute)); err != nil {
		t.Fatalf("reschedule overlapping itself failed: %v", err)
	}
}

func TestRescheduleReleasedBookingRejected(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))
	if _, err := g.Release(context.Background(), tenant, b.ID, "", model.StatusCancelled); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := g.Reschedule(context.Background(), tenant, b.ID, day.Add(14*time.Hour)); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTenantMismatch(t *testing.T) {
	g, _ := newFixture(t, 1)
	b := reserveAt(t, g, day.Add(10*time.Hour))
	if _, err := g.Confirm(context.Background(), "other-tenant", b.ID); !errors.Is(err, model.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}

func TestUnknownBookingNotFound(t *testing.T) {
	g, _ := newFixture(t, 1)
	if _, err := g.Confirm(context.Background(), tenant, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentReservesAdmitCapacityOnly(t *testing.T) {
	g, _ := newFixture(t, 1)
	start := day.Add(10 * time.Hour)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Reserve(context.Background(), booking.ReserveRequest{
				TenantID: tenant, StaffID: staffID, ServiceID: svcID,
				StartTime: start,
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, model.ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly 1 admitted reserve, got %d", admitted)
	}
}
