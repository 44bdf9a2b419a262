package storage

import (
	"context"

	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/libs/db"
)

// CatalogRepository reads services and staff. The records themselves are
// managed by the surrounding admin application; the engine only consumes them.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, duration_minutes, preparation_minutes,
			cleanup_minutes, min_advance_hours, max_advance_days,
			COALESCE(staff_ids, '{}'), created_at
		FROM services
		WHERE id = $1
	`, serviceID).Scan(
		&s.ID,
		&s.TenantID,
		&s.Name,
		&s.DurationMins,
		&s.PreparationMins,
		&s.CleanupMins,
		&s.MinAdvanceHours,
		&s.MaxAdvanceDays,
		&s.StaffIDs,
		&s.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, model.ErrNotFound
		}
		return model.Service{}, err
	}
	if s.TenantID != tenantID {
		return model.Service{}, model.ErrTenantMismatch
	}
	return s, nil
}

func (r *CatalogRepository) GetStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, capacity, accepts_online_booking,
			max_advance_days, created_at
		FROM staff
		WHERE id = $1
	`, staffID).Scan(
		&s.ID,
		&s.TenantID,
		&s.Name,
		&s.Capacity,
		&s.AcceptsOnlineBooking,
		&s.MaxAdvanceDays,
		&s.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Staff{}, model.ErrNotFound
		}
		return model.Staff{}, err
	}
	if s.TenantID != tenantID {
		return model.Staff{}, model.ErrTenantMismatch
	}
	return s, nil
}
