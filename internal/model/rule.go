package model

import (
	"slices"
	"time"
)

type RuleKind string

const (
	RuleWorkingHours RuleKind = "working_hours"
	RuleBreak        RuleKind = "break"
	RuleBlocked      RuleKind = "blocked"
	RuleVacation     RuleKind = "vacation"
)

func (k RuleKind) Valid() bool {
	switch k {
	case RuleWorkingHours, RuleBreak, RuleBlocked, RuleVacation:
		return true
	}
	return false
}

// IsAvailable reports whether the rule contributes open time. Every kind other
// than working hours subtracts from availability.
func (k RuleKind) IsAvailable() bool {
	return k == RuleWorkingHours
}

type Recurrence string

const (
	RecurNone    Recurrence = "none"
	RecurDaily   Recurrence = "daily"
	RecurWeekly  Recurrence = "weekly"
	RecurMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurNone, RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// AvailabilityRule is one staff-declared schedule entry. Times of day are stored
// as minutes from midnight; dates are UTC midnights. Recurrence is expanded on
// read, never materialized as rows.
type AvailabilityRule struct {
	ID                string
	TenantID          string
	StaffID           string
	OutletID          string
	AnchorDate        time.Time
	StartMinute       int
	EndMinute         int
	Kind              RuleKind
	Recurrence        Recurrence
	RecurrenceEndDate *time.Time
	// Weekdays narrows weekly recurrence; empty means the anchor date's weekday.
	Weekdays []time.Weekday
	// ServiceScope narrows the rule to specific services; empty means all.
	ServiceScope []string
	CreatedAt    time.Time
}

func (r *AvailabilityRule) Validate() error {
	if r.TenantID == "" {
		return Invalid("tenant_id", "required")
	}
	if r.StaffID == "" {
		return Invalid("staff_id", "required")
	}
	if r.AnchorDate.IsZero() {
		return Invalid("anchor_date", "required")
	}
	if !r.Kind.Valid() {
		return Invalid("kind", "unknown rule kind")
	}
	if !r.Recurrence.Valid() {
		return Invalid("recurrence", "unknown recurrence")
	}
	if r.StartMinute < 0 || r.StartMinute >= 24*60 {
		return Invalid("start_time", "out of range")
	}
	if r.EndMinute <= r.StartMinute || r.EndMinute > 24*60 {
		return Invalid("end_time", "must be after start_time")
	}
	if r.Recurrence != RecurNone {
		if r.RecurrenceEndDate == nil {
			return Invalid("recurrence_end_date", "required for recurring rules")
		}
		if r.RecurrenceEndDate.Before(r.AnchorDate) {
			return Invalid("recurrence_end_date", "before anchor_date")
		}
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return Invalid("recurrence_weekdays", "unknown weekday")
		}
	}
	return nil
}

// AppliesToService reports whether the rule is in scope for serviceID.
// An empty scope applies to every service.
func (r *AvailabilityRule) AppliesToService(serviceID string) bool {
	if len(r.ServiceScope) == 0 {
		return true
	}
	return slices.Contains(r.ServiceScope, serviceID)
}
