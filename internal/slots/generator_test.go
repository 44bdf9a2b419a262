package slots

import (
	"context"
	"testing"
	"time"

	"github.com/bookline/scheduling/internal/availability"
	"github.com/bookline/scheduling/internal/model"
)

type availStub func(day time.Time) []availability.Interval

func (f availStub) OpenIntervals(_ context.Context, _, _, _ string, day time.Time) ([]availability.Interval, error) {
	return f(day), nil
}

type bookingsStub []model.Booking

func (s bookingsStub) ListOccupying(_ context.Context, _, _ string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s {
		if b.Status.Occupying() && b.Overlaps(from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type catalogStub struct {
	svc   model.Service
	staff model.Staff
}

func (c catalogStub) GetService(context.Context, string, string) (model.Service, error) {
	return c.svc, nil
}

func (c catalogStub) GetStaff(context.Context, string, string) (model.Staff, error) {
	return c.staff, nil
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func openWindow(sh, eh int) availStub {
	return func(d time.Time) []availability.Interval {
		return []availability.Interval{{Start: d.Add(time.Duration(sh) * time.Hour), End: d.Add(time.Duration(eh) * time.Hour)}}
	}
}

func testCatalog() catalogStub {
	return catalogStub{
		svc: model.Service{
			ID:           "svc-1",
			TenantID:     "t1",
			DurationMins: 60,
			StaffIDs:     []string{"staff-1"},
		},
		staff: model.Staff{ID: "staff-1", TenantID: "t1", AcceptsOnlineBooking: true},
	}
}

func grid(t *testing.T, g *Generator, req GridRequest) []DaySlots {
	t.Helper()
	days, err := g.Grid(context.Background(), req)
	if err != nil {
		t.Fatalf("grid failed: %v", err)
	}
	return days
}

func TestGridStepAndFit(t *testing.T) {
	// 09:00-10:00 window, 60-minute service, 30-minute step: only 09:00 fits.
	g := NewGenerator(openWindow(9, 10), bookingsStub(nil), testCatalog())
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, StepMinutes: 30, Now: day,
	})
	if len(days) != 1 || len(days[0].Slots) != 1 {
		t.Fatalf("expected exactly one slot, got %+v", days)
	}
	s := days[0].Slots[0]
	if !s.Start.Equal(day.Add(9*time.Hour)) || !s.Bookable {
		t.Fatalf("expected bookable 09:00 slot, got %+v", s)
	}
}

func TestGridDefaultStepIsServiceDuration(t *testing.T) {
	g := NewGenerator(openWindow(9, 12), bookingsStub(nil), testCatalog())
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	if len(days[0].Slots) != 3 {
		t.Fatalf("expected 3 hourly slots, got %d", len(days[0].Slots))
	}
}

func TestGridMarksOccupiedSlotsUnbookable(t *testing.T) {
	busy := bookingsStub{{
		StaffID:   "staff-1",
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Status:    model.StatusConfirmed,
	}}
	g := NewGenerator(openWindow(9, 12), busy, testCatalog())
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	slots := days[0].Slots
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	// Touching bookings do not conflict: 09:00 and 11:00 stay bookable.
	for i, want := range []bool{true, false, true} {
		if slots[i].Bookable != want {
			t.Fatalf("slot %d (%s): expected bookable=%v", i, slots[i].Start.Format("15:04"), want)
		}
	}
}

func TestGridCapacityTwoKeepsSlotBookable(t *testing.T) {
	c := testCatalog()
	c.staff.Capacity = 2
	busy := bookingsStub{{
		StaffID:   "staff-1",
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Status:    model.StatusPending,
	}}
	g := NewGenerator(openWindow(10, 11), busy, c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	if len(days[0].Slots) != 1 || !days[0].Slots[0].Bookable {
		t.Fatalf("expected 10:00 bookable under capacity 2, got %+v", days[0].Slots)
	}
}

func TestGridLeadTimeDropsEarlySlots(t *testing.T) {
	c := testCatalog()
	c.svc.MinAdvanceHours = 2
	g := NewGenerator(openWindow(9, 12), bookingsStub(nil), c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day.Add(8 * time.Hour),
	})
	// now=08:00, lead 2h: 09:00 is gone, 10:00 and 11:00 remain.
	slots := days[0].Slots
	if len(slots) != 2 || !slots[0].Start.Equal(day.Add(10*time.Hour)) {
		t.Fatalf("expected slots 10:00 and 11:00, got %+v", slots)
	}
}

func TestGridHorizonCutsOffLateDays(t *testing.T) {
	c := testCatalog()
	c.svc.MaxAdvanceDays = 1
	g := NewGenerator(openWindow(9, 10), bookingsStub(nil), c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 3, Now: day,
	})
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if len(days[0].Slots) == 0 || len(days[1].Slots) == 0 {
		t.Fatalf("expected slots inside horizon, got %+v", days)
	}
	if len(days[2].Slots) != 0 {
		t.Fatalf("expected no slots beyond horizon, got %+v", days[2].Slots)
	}
}

func TestGridStaffHorizonTightensServiceHorizon(t *testing.T) {
	c := testCatalog()
	c.svc.MaxAdvanceDays = 10
	c.staff.MaxAdvanceDays = 1
	g := NewGenerator(openWindow(9, 10), bookingsStub(nil), c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 3, Now: day,
	})
	if len(days[2].Slots) != 0 {
		t.Fatalf("expected staff horizon to cut day 3, got %+v", days[2].Slots)
	}
}

func TestGridOfflineStaffHasNoSlots(t *testing.T) {
	c := testCatalog()
	c.staff.AcceptsOnlineBooking = false
	g := NewGenerator(openWindow(9, 17), bookingsStub(nil), c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	if len(days[0].Slots) != 0 {
		t.Fatalf("expected no slots for offline staff, got %+v", days[0].Slots)
	}
}

func TestGridRejectsUnassignedStaff(t *testing.T) {
	c := testCatalog()
	c.svc.StaffIDs = []string{"someone-else"}
	g := NewGenerator(openWindow(9, 17), bookingsStub(nil), c)
	_, err := g.Grid(context.Background(), GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGridSpanIncludesPrepAndCleanup(t *testing.T) {
	c := testCatalog()
	c.svc.PreparationMins = 15
	c.svc.CleanupMins = 15
	// Span 90 min in a 09:00-10:00 window: nothing fits.
	g := NewGenerator(openWindow(9, 10), bookingsStub(nil), c)
	days := grid(t, g, GridRequest{
		TenantID: "t1", StaffID: "staff-1", ServiceID: "svc-1",
		StartDate: day, NumDays: 1, Now: day,
	})
	if len(days[0].Slots) != 0 {
		t.Fatalf("expected no slots for 90-minute span in 60-minute window, got %+v", days[0].Slots)
	}
}
