// Package availability merges a staff member's schedule rules into the net
// set of open intervals for a calendar date.
package availability

import (
	"context"
	"time"

	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/recurrence"
)

// RuleSource loads the availability rules that may apply to a staff member
// inside a date window.
type RuleSource interface {
	RulesForStaff(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.AvailabilityRule, error)
}

type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// OpenIntervals resolves the disjoint open intervals for one staff member on
// one date, optionally scoped to a service. Working-hours rules build the base
// set; breaks and blocks subtract from it; any applicable vacation rule empties
// the whole day.
func (r *Resolver) OpenIntervals(ctx context.Context, tenantID, staffID, serviceID string, day time.Time) ([]Interval, error) {
	day = recurrence.DateOf(day)
	rules, err := r.rules.RulesForStaff(ctx, tenantID, staffID, day, day)
	if err != nil {
		return nil, err
	}

	var base, cuts []Interval
	onVacation := false
	for _, rule := range rules {
		if serviceID != "" && !rule.AppliesToService(serviceID) {
			continue
		}
		dates, err := recurrence.Expand(rule, day, day)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			continue
		}

		iv := Interval{
			Start: day.Add(time.Duration(rule.StartMinute) * time.Minute),
			End:   day.Add(time.Duration(rule.EndMinute) * time.Minute),
		}
		switch rule.Kind {
		case model.RuleWorkingHours:
			base = append(base, iv)
		case model.RuleVacation:
			onVacation = true
		default:
			cuts = append(cuts, iv)
		}
	}

	if onVacation || len(base) == 0 {
		return nil, nil
	}
	return Subtract(base, cuts), nil
}
