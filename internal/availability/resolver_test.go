package availability

import (
	"context"
	"testing"
	"time"

	"github.com/bookline/scheduling/internal/model"
)

type staticRules []model.AvailabilityRule

func (s staticRules) RulesForStaff(context.Context, string, string, time.Time, time.Time) ([]model.AvailabilityRule, error) {
	return s, nil
}

func workingHours(startMin, endMin int) model.AvailabilityRule {
	return model.AvailabilityRule{
		StaffID:     "staff-1",
		AnchorDate:  at(0, 0),
		StartMinute: startMin,
		EndMinute:   endMin,
		Kind:        model.RuleWorkingHours,
		Recurrence:  model.RecurNone,
	}
}

func TestOpenIntervalsBreakSplitsDay(t *testing.T) {
	lunch := workingHours(12*60, 13*60)
	lunch.Kind = model.RuleBreak

	r := NewResolver(staticRules{workingHours(9*60, 17*60), lunch})
	got, err := r.OpenIntervals(context.Background(), "t1", "staff-1", "", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []Interval{iv(9, 0, 12, 0), iv(13, 0, 17, 0)}
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestOpenIntervalsVacationEmptiesDay(t *testing.T) {
	vacation := workingHours(0, 24*60)
	vacation.Kind = model.RuleVacation

	r := NewResolver(staticRules{workingHours(9*60, 17*60), vacation})
	got, err := r.OpenIntervals(context.Background(), "t1", "staff-1", "", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty day on vacation, got %v", got)
	}
}

func TestOpenIntervalsNoWorkingHoursMeansClosed(t *testing.T) {
	block := workingHours(10*60, 11*60)
	block.Kind = model.RuleBlocked

	r := NewResolver(staticRules{block})
	got, err := r.OpenIntervals(context.Background(), "t1", "staff-1", "", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected closed day without working hours, got %v", got)
	}
}

func TestOpenIntervalsHonorsServiceScope(t *testing.T) {
	scoped := workingHours(9*60, 12*60)
	scoped.ServiceScope = []string{"svc-massage"}

	r := NewResolver(staticRules{scoped})

	got, err := r.OpenIntervals(context.Background(), "t1", "staff-1", "svc-haircut", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected rule out of scope for svc-haircut, got %v", got)
	}

	got, err = r.OpenIntervals(context.Background(), "t1", "staff-1", "svc-massage", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected rule in scope for svc-massage, got %v", got)
	}
}

func TestOpenIntervalsIgnoresRulesForOtherDates(t *testing.T) {
	other := workingHours(9*60, 17*60)
	other.AnchorDate = at(0, 0).AddDate(0, 0, 1)

	r := NewResolver(staticRules{other})
	got, err := r.OpenIntervals(context.Background(), "t1", "staff-1", "", at(0, 0))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no intervals from a rule anchored tomorrow, got %v", got)
	}
}
