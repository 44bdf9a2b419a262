package model

import (
	"slices"
	"time"
)

// Service is a bookable treatment. The occupied span of a booking is
// duration + preparation + cleanup.
type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMins    int
	PreparationMins int
	CleanupMins     int
	// MinAdvanceHours rejects slots starting sooner than now + this lead time.
	MinAdvanceHours int
	// MaxAdvanceDays bounds how far ahead a slot may be booked; 0 = unlimited.
	MaxAdvanceDays int
	StaffIDs       []string
	CreatedAt      time.Time
}

func (s *Service) SpanMinutes() int {
	return s.DurationMins + s.PreparationMins + s.CleanupMins
}

func (s *Service) Span() time.Duration {
	return time.Duration(s.SpanMinutes()) * time.Minute
}

func (s *Service) AssignedTo(staffID string) bool {
	return slices.Contains(s.StaffIDs, staffID)
}

type Staff struct {
	ID                   string
	TenantID             string
	Name                 string
	Capacity             int
	AcceptsOnlineBooking bool
	// MaxAdvanceDays overrides the service-level horizon when tighter; 0 = no override.
	MaxAdvanceDays int
	CreatedAt      time.Time
}

// EffectiveCapacity defaults to a single concurrent booking when the record
// does not declare otherwise.
func (s *Staff) EffectiveCapacity() int {
	if s.Capacity <= 0 {
		return 1
	}
	return s.Capacity
}
