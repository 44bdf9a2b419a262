// Package recurrence turns a stored availability rule into the concrete
// calendar dates it covers inside a query window. Expansion is a pure
// function; recurring rules are stored once and never materialized as rows.
package recurrence

import (
	"time"

	"github.com/bookline/scheduling/internal/model"
)

// DateOf returns the UTC date (midnight) containing t.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Expand returns the ordered, deduplicated dates in [from, to] on which the
// rule is active. The window is intersected with [anchor, recurrence end].
func Expand(rule model.AvailabilityRule, from, to time.Time) ([]time.Time, error) {
	anchor := DateOf(rule.AnchorDate)
	lo := DateOf(from)
	hi := DateOf(to)
	if hi.Before(lo) {
		return nil, nil
	}

	if rule.Recurrence == model.RecurNone {
		if anchor.Before(lo) || anchor.After(hi) {
			return nil, nil
		}
		return []time.Time{anchor}, nil
	}

	if rule.RecurrenceEndDate == nil {
		return nil, model.Invalid("recurrence_end_date", "required for recurring rules")
	}
	end := DateOf(*rule.RecurrenceEndDate)
	if end.Before(anchor) {
		return nil, model.Invalid("recurrence_end_date", "before anchor_date")
	}

	if anchor.After(lo) {
		lo = anchor
	}
	if end.Before(hi) {
		hi = end
	}
	if hi.Before(lo) {
		return nil, nil
	}

	switch rule.Recurrence {
	case model.RecurDaily:
		return daysBetween(lo, hi, nil), nil
	case model.RecurWeekly:
		weekdays := rule.Weekdays
		if len(weekdays) == 0 {
			weekdays = []time.Weekday{anchor.Weekday()}
		}
		allowed := map[time.Weekday]bool{}
		for _, wd := range weekdays {
			allowed[wd] = true
		}
		return daysBetween(lo, hi, allowed), nil
	case model.RecurMonthly:
		return monthlyDates(anchor, lo, hi), nil
	}
	return nil, model.Invalid("recurrence", "unknown recurrence")
}

func daysBetween(lo, hi time.Time, weekdays map[time.Weekday]bool) []time.Time {
	var out []time.Time
	for d := lo; !d.After(hi); d = d.AddDate(0, 0, 1) {
		if weekdays != nil && !weekdays[d.Weekday()] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// monthlyDates yields the anchor's day-of-month in every month of the window,
// clamped to the last day of shorter months (anchor day 31 -> Feb 28/29).
func monthlyDates(anchor, lo, hi time.Time) []time.Time {
	var out []time.Time
	anchorDay := anchor.Day()
	for month := time.Date(lo.Year(), lo.Month(), 1, 0, 0, 0, 0, time.UTC); !month.After(hi); month = month.AddDate(0, 1, 0) {
		day := anchorDay
		if last := lastDayOfMonth(month); day > last {
			day = last
		}
		cand := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
		if cand.Before(lo) || cand.After(hi) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func lastDayOfMonth(month time.Time) int {
	return time.Date(month.Year(), month.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
