package model

import (
	"testing"
	"time"
)

func validRule() AvailabilityRule {
	return AvailabilityRule{
		TenantID:    "t1",
		StaffID:     "staff-1",
		AnchorDate:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Kind:        RuleWorkingHours,
		Recurrence:  RecurNone,
	}
}

func TestRuleValidate(t *testing.T) {
	r := validRule()
	if err := r.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	r = validRule()
	r.EndMinute = r.StartMinute
	if err := r.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for empty window, got %v", err)
	}

	r = validRule()
	r.Kind = "lunch"
	if err := r.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}

	r = validRule()
	r.Recurrence = RecurWeekly
	if err := r.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for recurring rule without end date, got %v", err)
	}

	r = validRule()
	r.Recurrence = RecurWeekly
	before := r.AnchorDate.AddDate(0, 0, -1)
	r.RecurrenceEndDate = &before
	if err := r.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for end before anchor, got %v", err)
	}
}

func TestRuleAppliesToService(t *testing.T) {
	r := validRule()
	if !r.AppliesToService("anything") {
		t.Fatal("empty scope should apply to every service")
	}
	r.ServiceScope = []string{"svc-1"}
	if !r.AppliesToService("svc-1") || r.AppliesToService("svc-2") {
		t.Fatal("scoped rule should apply only to listed services")
	}
}
