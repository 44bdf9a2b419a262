package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bookline/scheduling/internal/model"
)

// TenantHeader carries the tenant identifier resolved by the external
// auth/tenant layer. The engine never infers tenant from data.
const TenantHeader = "X-Tenant-Id"

func tenantID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(TenantHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("tenant_id"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case model.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "slot unavailable"})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invalid status transition"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, model.ErrTenantMismatch):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "tenant mismatch"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
