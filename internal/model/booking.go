package model

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

// Occupying reports whether the status counts toward staff capacity.
func (s BookingStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo encodes the booking lifecycle:
// pending -> confirmed | cancelled | no_show, confirmed -> completed | cancelled | no_show.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled || next == StatusNoShow
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled || next == StatusNoShow
	}
	return false
}

type Booking struct {
	ID           string
	TenantID     string
	StaffID      string
	ServiceID    string
	OutletID     string
	StartTime    time.Time
	EndTime      time.Time
	Status       BookingStatus
	CancelReason string
	CancelledAt  *time.Time
	CreatedAt    time.Time
}

// Overlaps uses half-open interval semantics: a booking ending exactly at start
// does not overlap (touching is not overlapping).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime)
}
