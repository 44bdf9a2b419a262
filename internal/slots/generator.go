// Package slots produces the bookable time-slot grid for a staff member,
// service, and date range. The grid is advisory: final admission happens in
// the booking guard at reservation time.
package slots

import (
	"context"
	"time"

	"github.com/bookline/scheduling/internal/availability"
	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/recurrence"
)

type AvailabilitySource interface {
	OpenIntervals(ctx context.Context, tenantID, staffID, serviceID string, day time.Time) ([]availability.Interval, error)
}

type BookingSource interface {
	// ListOccupying returns bookings in pending or confirmed status whose
	// interval overlaps [from, to).
	ListOccupying(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.Booking, error)
}

type CatalogSource interface {
	GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
}

type Slot struct {
	Start    time.Time
	Bookable bool
}

type DaySlots struct {
	Date  time.Time
	Slots []Slot
}

type GridRequest struct {
	TenantID    string
	StaffID     string
	ServiceID   string
	OutletID    string
	StartDate   time.Time
	NumDays     int
	StepMinutes int
	Now         time.Time
}

type Generator struct {
	availability AvailabilitySource
	bookings     BookingSource
	catalog      CatalogSource
}

func NewGenerator(avail AvailabilitySource, bookings BookingSource, catalog CatalogSource) *Generator {
	return &Generator{availability: avail, bookings: bookings, catalog: catalog}
}

// Grid walks the open intervals of each day in the range and emits candidate
// start times at step granularity. Candidates that do not fit the interval or
// violate the lead-time/horizon policy are dropped; the remaining ones carry a
// bookable flag reflecting current capacity. Read-only.
func (g *Generator) Grid(ctx context.Context, req GridRequest) ([]DaySlots, error) {
	if req.NumDays <= 0 {
		return nil, model.Invalid("num_days", "must be positive")
	}
	svc, err := g.catalog.GetService(ctx, req.TenantID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	staff, err := g.catalog.GetStaff(ctx, req.TenantID, req.StaffID)
	if err != nil {
		return nil, err
	}
	if !svc.AssignedTo(staff.ID) {
		return nil, model.Invalid("staff_id", "staff not assigned to service")
	}

	step := req.StepMinutes
	if step <= 0 {
		step = svc.DurationMins
	}
	if step < 5 {
		step = 5
	}
	span := svc.Span()
	if span <= 0 {
		return nil, model.Invalid("service", "service has no duration")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	earliestStart := now.Add(time.Duration(svc.MinAdvanceHours) * time.Hour)
	horizon := bookingHorizon(now, svc.MaxAdvanceDays, staff.MaxAdvanceDays)

	startDate := recurrence.DateOf(req.StartDate)
	days := make([]DaySlots, 0, req.NumDays)
	for i := 0; i < req.NumDays; i++ {
		day := startDate.AddDate(0, 0, i)
		entry := DaySlots{Date: day}

		if !staff.AcceptsOnlineBooking || (!horizon.IsZero() && day.After(horizon)) {
			days = append(days, entry)
			continue
		}

		open, err := g.availability.OpenIntervals(ctx, req.TenantID, req.StaffID, req.ServiceID, day)
		if err != nil {
			return nil, err
		}
		if len(open) == 0 {
			days = append(days, entry)
			continue
		}

		busy, err := g.bookings.ListOccupying(ctx, req.TenantID, req.StaffID, open[0].Start, open[len(open)-1].End)
		if err != nil {
			return nil, err
		}

		capacity := staff.EffectiveCapacity()
		for _, win := range open {
			for t := win.Start; !t.Add(span).After(win.End); t = t.Add(time.Duration(step) * time.Minute) {
				if t.Before(earliestStart) {
					continue
				}
				entry.Slots = append(entry.Slots, Slot{
					Start:    t,
					Bookable: countOverlapping(busy, t, t.Add(span)) < capacity,
				})
			}
		}
		days = append(days, entry)
	}
	return days, nil
}

// bookingHorizon returns the last bookable date, taking the tighter of the
// service-level and staff-level limits. Zero means unbounded.
func bookingHorizon(now time.Time, serviceDays, staffDays int) time.Time {
	days := serviceDays
	if staffDays > 0 && (days <= 0 || staffDays < days) {
		days = staffDays
	}
	if days <= 0 {
		return time.Time{}
	}
	return recurrence.DateOf(now).AddDate(0, 0, days)
}

func countOverlapping(bookings []model.Booking, start, end time.Time) int {
	n := 0
	for i := range bookings {
		if bookings[i].Status.Occupying() && bookings[i].Overlaps(start, end) {
			n++
		}
	}
	return n
}
