package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookline/scheduling/internal/booking"
	"github.com/bookline/scheduling/internal/model"
)

// BookingLister is the read side used by the list endpoint.
type BookingLister interface {
	ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error)
}

type BookingHandler struct {
	guard  *booking.Guard
	store  BookingLister
	logger *slog.Logger
}

func NewBookingHandler(guard *booking.Guard, store BookingLister, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{guard: guard, store: store, logger: logger}
}

func (h *BookingHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /bookings", h.Create)
	mux.HandleFunc("GET /bookings", h.List)
	mux.HandleFunc("POST /bookings/{id}/reschedule", h.Reschedule)
	mux.HandleFunc("POST /bookings/{id}/confirm", h.transition(model.StatusConfirmed))
	mux.HandleFunc("POST /bookings/{id}/complete", h.transition(model.StatusCompleted))
	mux.HandleFunc("POST /bookings/{id}/cancel", h.transition(model.StatusCancelled))
	mux.HandleFunc("POST /bookings/{id}/no-show", h.transition(model.StatusNoShow))
}

type createBookingRequest struct {
	ServiceID string `json:"service_id"`
	StaffID   string `json:"staff_id"`
	OutletID  string `json:"outlet_id"`
	StartAt   string `json:"start_at"`
}

type rescheduleRequest struct {
	NewDate string `json:"new_date"`
	NewTime string `json:"new_time"`
}

type transitionRequest struct {
	Reason string `json:"reason"`
}

type bookingResponse struct {
	BookingID    string `json:"booking_id"`
	StaffID      string `json:"staff_id"`
	ServiceID    string `json:"service_id"`
	OutletID     string `json:"outlet_id,omitempty"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	Status       string `json:"status"`
	CancelReason string `json:"cancel_reason,omitempty"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID: b.ID,
		StaffID:   b.StaffID,
		ServiceID: b.ServiceID,
		OutletID:  b.OutletID,
		StartAt:   b.StartTime.UTC().Format(time.RFC3339),
		EndAt:     b.EndTime.UTC().Format(time.RFC3339),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelReason != "" {
		resp.CancelReason = b.CancelReason
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.ServiceID == "" || req.StaffID == "" {
		http.Error(w, "service_id and staff_id required", http.StatusBadRequest)
		return
	}
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		http.Error(w, "invalid start_at", http.StatusBadRequest)
		return
	}

	b, err := h.guard.Reserve(r.Context(), booking.ReserveRequest{
		TenantID:  tenant,
		StaffID:   req.StaffID,
		ServiceID: req.ServiceID,
		OutletID:  strings.TrimSpace(req.OutletID),
		StartTime: startAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}
	bookingID := r.PathValue("id")

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	newStart, err := time.Parse("2006-01-02 15:04", strings.TrimSpace(req.NewDate)+" "+strings.TrimSpace(req.NewTime))
	if err != nil {
		http.Error(w, "invalid new_date/new_time", http.StatusBadRequest)
		return
	}
	newStart = newStart.UTC()

	b, err := h.guard.Reschedule(r.Context(), tenant, bookingID, newStart)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) transition(to model.BookingStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := tenantID(r)
		if tenant == "" {
			http.Error(w, "tenant id required", http.StatusBadRequest)
			return
		}
		bookingID := r.PathValue("id")

		// Reason body is optional on every transition.
		var req transitionRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		var (
			b   model.Booking
			err error
		)
		switch to {
		case model.StatusConfirmed:
			b, err = h.guard.Confirm(r.Context(), tenant, bookingID)
		case model.StatusCompleted:
			b, err = h.guard.Complete(r.Context(), tenant, bookingID)
		default:
			b, err = h.guard.Release(r.Context(), tenant, bookingID, strings.TrimSpace(req.Reason), to)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "tenant id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.store.ListBookings(r.Context(), tenant, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, items)
}
