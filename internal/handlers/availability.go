package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/internal/slots"
)

// RuleStore is the availability-rule persistence consumed by the
// staff-schedule management endpoints.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	UpdateRule(ctx context.Context, rule *model.AvailabilityRule) error
	DeleteRule(ctx context.Context, tenantID, ruleID string) error
	GetRule(ctx context.Context, tenantID, ruleID string) (model.AvailabilityRule, error)
	ListRules(ctx context.Context, tenantID, staffID string) ([]model.AvailabilityRule, error)
}

type AvailabilityHandler struct {
	grid   *slots.Generator
	rules  RuleStore
	logger *slog.Logger
}

func NewAvailabilityHandler(grid *slots.Generator, rules RuleStore, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{grid: grid, rules: rules, logger: logger}
}

func (h *AvailabilityHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /availability/grid", h.Grid)
	mux.HandleFunc("GET /availability", h.ListRules)
	mux.HandleFunc("POST /availability", h.CreateRule)
	mux.HandleFunc("PUT /availability/{id}", h.UpdateRule)
	mux.HandleFunc("DELETE /availability/{id}", h.DeleteRule)
}

type slotItem struct {
	Time     string `json:"time"`
	Bookable bool   `json:"bookable"`
}

type dayItem struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

type gridResponse struct {
	Days []dayItem `json:"days"`
}

func (h *AvailabilityHandler) Grid(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	if serviceID == "" || staffID == "" {
		http.Error(w, "service_id and staff_id required", http.StatusBadRequest)
		return
	}
	startDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("start_date")), time.UTC)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	numDays := 7
	if raw := strings.TrimSpace(q.Get("num_days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 60 {
			http.Error(w, "invalid num_days", http.StatusBadRequest)
			return
		}
		numDays = n
	}
	stepMins := 0
	if raw := strings.TrimSpace(q.Get("slot_interval_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 240 {
			http.Error(w, "invalid slot_interval_minutes", http.StatusBadRequest)
			return
		}
		stepMins = n
	}

	days, err := h.grid.Grid(r.Context(), slots.GridRequest{
		TenantID:    tenant,
		StaffID:     staffID,
		ServiceID:   serviceID,
		OutletID:    strings.TrimSpace(q.Get("outlet_id")),
		StartDate:   startDate,
		NumDays:     numDays,
		StepMinutes: stepMins,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := gridResponse{Days: make([]dayItem, 0, len(days))}
	for _, day := range days {
		item := dayItem{Date: day.Date.Format("2006-01-02"), Slots: make([]slotItem, 0, len(day.Slots))}
		for _, s := range day.Slots {
			item.Slots = append(item.Slots, slotItem{
				Time:     s.Start.UTC().Format("15:04"),
				Bookable: s.Bookable,
			})
		}
		resp.Days = append(resp.Days, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type ruleRequest struct {
	StaffID            string   `json:"staff_id"`
	OutletID           string   `json:"outlet_id"`
	AnchorDate         string   `json:"anchor_date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	Kind               string   `json:"kind"`
	Recurrence         string   `json:"recurrence"`
	RecurrenceEndDate  string   `json:"recurrence_end_date"`
	RecurrenceWeekdays []int    `json:"recurrence_weekdays"`
	ServiceScope       []string `json:"service_scope"`
}

type ruleResponse struct {
	RuleID             string   `json:"rule_id"`
	StaffID            string   `json:"staff_id"`
	OutletID           string   `json:"outlet_id,omitempty"`
	AnchorDate         string   `json:"anchor_date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	Kind               string   `json:"kind"`
	Recurrence         string   `json:"recurrence"`
	RecurrenceEndDate  string   `json:"recurrence_end_date,omitempty"`
	RecurrenceWeekdays []int    `json:"recurrence_weekdays,omitempty"`
	ServiceScope       []string `json:"service_scope,omitempty"`
}

func (req *ruleRequest) toRule(tenant string) (*model.AvailabilityRule, error) {
	anchor, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.AnchorDate), time.UTC)
	if err != nil {
		return nil, model.Invalid("anchor_date", "expected YYYY-MM-DD")
	}
	startMin, err := parseClock(req.StartTime)
	if err != nil {
		return nil, model.Invalid("start_time", "expected HH:MM")
	}
	endMin, err := parseClock(req.EndTime)
	if err != nil {
		return nil, model.Invalid("end_time", "expected HH:MM")
	}

	rule := &model.AvailabilityRule{
		TenantID:    tenant,
		StaffID:     strings.TrimSpace(req.StaffID),
		OutletID:    strings.TrimSpace(req.OutletID),
		AnchorDate:  anchor,
		StartMinute: startMin,
		EndMinute:   endMin,
		Kind:        model.RuleKind(req.Kind),
		Recurrence:  model.Recurrence(req.Recurrence),
	}
	if rule.Recurrence == "" {
		rule.Recurrence = model.RecurNone
	}
	if raw := strings.TrimSpace(req.RecurrenceEndDate); raw != "" {
		end, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return nil, model.Invalid("recurrence_end_date", "expected YYYY-MM-DD")
		}
		rule.RecurrenceEndDate = &end
	}
	for _, wd := range req.RecurrenceWeekdays {
		rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
	}
	for _, id := range req.ServiceScope {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			rule.ServiceScope = append(rule.ServiceScope, trimmed)
		}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func toRuleResponse(rule model.AvailabilityRule) ruleResponse {
	resp := ruleResponse{
		RuleID:       rule.ID,
		StaffID:      rule.StaffID,
		OutletID:     rule.OutletID,
		AnchorDate:   rule.AnchorDate.Format("2006-01-02"),
		StartTime:    formatClock(rule.StartMinute),
		EndTime:      formatClock(rule.EndMinute),
		Kind:         string(rule.Kind),
		Recurrence:   string(rule.Recurrence),
		ServiceScope: rule.ServiceScope,
	}
	if rule.RecurrenceEndDate != nil {
		resp.RecurrenceEndDate = rule.RecurrenceEndDate.Format("2006-01-02")
	}
	for _, wd := range rule.Weekdays {
		resp.RecurrenceWeekdays = append(resp.RecurrenceWeekdays, int(wd))
	}
	return resp
}

func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rule, err := req.toRule(tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	rule.ID = uuid.NewString()
	rule.CreatedAt = time.Now().UTC()
	if err := h.rules.CreateRule(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(*rule))
}

func (h *AvailabilityHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rule, err := req.toRule(tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	rule.ID = r.PathValue("id")
	if err := h.rules.UpdateRule(r.Context(), rule); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(*rule))
}

func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}
	if err := h.rules.DeleteRule(r.Context(), tenant, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}
	rules, err := h.rules.ListRules(r.Context(), tenant, strings.TrimSpace(r.URL.Query().Get("staff_id")))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, toRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, items)
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
