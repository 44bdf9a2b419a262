package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookline/scheduling/internal/booking"
	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/outbox"
	"github.com/bookline/scheduling/internal/recurrence"
)

// Memory is an in-memory implementation of every store the engine consumes.
// It keeps the same per-staff serialization contract as the Postgres store
// (a mutex per tenant+staff pair) and is what the engine tests run against.
type Memory struct {
	mu       sync.Mutex
	staffMu  map[string]*sync.Mutex
	bookings map[string]model.Booking
	rules    map[string]model.AvailabilityRule
	services map[string]model.Service
	staff    map[string]model.Staff
	events   []outbox.Event
}

func NewMemory() *Memory {
	return &Memory{
		staffMu:  map[string]*sync.Mutex{},
		bookings: map[string]model.Booking{},
		rules:    map[string]model.AvailabilityRule{},
		services: map[string]model.Service{},
		staff:    map[string]model.Staff{},
	}
}

func (m *Memory) PutService(s model.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *Memory) PutStaff(s model.Staff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[s.ID] = s
}

// Events returns a copy of everything emitted through the outbox sink.
func (m *Memory) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]outbox.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) WithStaffTx(ctx context.Context, tenantID, staffID string, fn func(booking.Tx) error) error {
	lock := m.staffLock(tenantID + ":" + staffID)
	lock.Lock()
	defer lock.Unlock()
	// The guard performs all validation before its first write, so applying
	// writes directly (without rollback) preserves the atomicity contract.
	return fn(&memTx{m: m})
}

func (m *Memory) staffLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.staffMu[key]
	if !ok {
		lock = &sync.Mutex{}
		m.staffMu[key] = lock
	}
	return lock
}

func (m *Memory) GetBooking(_ context.Context, tenantID, bookingID string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	if b.TenantID != tenantID {
		return model.Booking{}, model.ErrTenantMismatch
	}
	return b, nil
}

func (m *Memory) ListOccupying(_ context.Context, tenantID, staffID string, from, to time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.TenantID != tenantID || b.StaffID != staffID {
			continue
		}
		if b.Status.Occupying() && b.Overlaps(from, to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) ListBookings(_ context.Context, tenantID string, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetService(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[serviceID]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	if s.TenantID != tenantID {
		return model.Service{}, model.ErrTenantMismatch
	}
	return s, nil
}

func (m *Memory) GetStaff(_ context.Context, tenantID, staffID string) (model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[staffID]
	if !ok {
		return model.Staff{}, model.ErrNotFound
	}
	if s.TenantID != tenantID {
		return model.Staff{}, model.ErrTenantMismatch
	}
	return s, nil
}

func (m *Memory) CreateRule(_ context.Context, rule *model.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = *rule
	return nil
}

func (m *Memory) UpdateRule(_ context.Context, rule *model.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[rule.ID]
	if !ok {
		return model.ErrNotFound
	}
	if existing.TenantID != rule.TenantID {
		return model.ErrTenantMismatch
	}
	m.rules[rule.ID] = *rule
	return nil
}

func (m *Memory) DeleteRule(_ context.Context, tenantID, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[ruleID]
	if !ok {
		return model.ErrNotFound
	}
	if existing.TenantID != tenantID {
		return model.ErrTenantMismatch
	}
	delete(m.rules, ruleID)
	return nil
}

func (m *Memory) GetRule(_ context.Context, tenantID, ruleID string) (model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[ruleID]
	if !ok {
		return model.AvailabilityRule{}, model.ErrNotFound
	}
	if rule.TenantID != tenantID {
		return model.AvailabilityRule{}, model.ErrTenantMismatch
	}
	return rule, nil
}

func (m *Memory) ListRules(_ context.Context, tenantID, staffID string) ([]model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailabilityRule
	for _, rule := range m.rules {
		if rule.TenantID != tenantID {
			continue
		}
		if staffID != "" && rule.StaffID != staffID {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnchorDate.Equal(out[j].AnchorDate) {
			return out[i].AnchorDate.Before(out[j].AnchorDate)
		}
		return out[i].StartMinute < out[j].StartMinute
	})
	return out, nil
}

// RulesForStaff returns every rule that could be active inside [from, to].
func (m *Memory) RulesForStaff(_ context.Context, tenantID, staffID string, from, to time.Time) ([]model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo := recurrence.DateOf(from)
	hi := recurrence.DateOf(to)
	var out []model.AvailabilityRule
	for _, rule := range m.rules {
		if rule.TenantID != tenantID || rule.StaffID != staffID {
			continue
		}
		anchor := recurrence.DateOf(rule.AnchorDate)
		if anchor.After(hi) {
			continue
		}
		if rule.Recurrence == model.RecurNone {
			if anchor.Before(lo) {
				continue
			}
		} else if rule.RecurrenceEndDate != nil && recurrence.DateOf(*rule.RecurrenceEndDate).Before(lo) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

type memTx struct {
	m *Memory
}

func (t *memTx) CountOccupying(_ context.Context, tenantID, staffID string, start, end time.Time, excludeBookingID string) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	n := 0
	for _, b := range t.m.bookings {
		if b.TenantID != tenantID || b.StaffID != staffID || b.ID == excludeBookingID {
			continue
		}
		if b.Status.Occupying() && b.Overlaps(start, end) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.bookings[b.ID] = *b
	return nil
}

func (t *memTx) BookingForUpdate(_ context.Context, tenantID, bookingID string) (model.Booking, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	b, ok := t.m.bookings[bookingID]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	if b.TenantID != tenantID {
		return model.Booking{}, model.ErrTenantMismatch
	}
	return b, nil
}

func (t *memTx) UpdateBookingInterval(_ context.Context, tenantID, bookingID string, start, end time.Time) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	b, ok := t.m.bookings[bookingID]
	if !ok || b.TenantID != tenantID {
		return model.ErrNotFound
	}
	b.StartTime = start
	b.EndTime = end
	t.m.bookings[bookingID] = b
	return nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, tenantID, bookingID string, status model.BookingStatus, reason string, cancelledAt *time.Time) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	b, ok := t.m.bookings[bookingID]
	if !ok || b.TenantID != tenantID {
		return model.ErrNotFound
	}
	b.Status = status
	b.CancelReason = reason
	b.CancelledAt = cancelledAt
	t.m.bookings[bookingID] = b
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.events = append(t.m.events, evt)
	return nil
}
