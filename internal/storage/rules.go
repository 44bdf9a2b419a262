package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookline/scheduling/internal/model"
	"github.com/bookline/scheduling/libs/db"
)

type RuleRepository struct {
	pool *db.Pool
}

func NewRuleRepository(pool *db.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

func (r *RuleRepository) CreateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_rules
			(id, tenant_id, staff_id, outlet_id, anchor_date, start_minute, end_minute,
			kind, recurrence, recurrence_end_date, weekdays, service_scope, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, rule.ID, rule.TenantID, rule.StaffID, rule.OutletID, rule.AnchorDate,
		rule.StartMinute, rule.EndMinute, rule.Kind, rule.Recurrence,
		rule.RecurrenceEndDate, weekdaysToInts(rule.Weekdays), rule.ServiceScope, rule.CreatedAt)
	return err
}

func (r *RuleRepository) UpdateRule(ctx context.Context, rule *model.AvailabilityRule) error {
	if _, err := r.GetRule(ctx, rule.TenantID, rule.ID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE availability_rules
		SET staff_id = $3, outlet_id = $4, anchor_date = $5, start_minute = $6,
			end_minute = $7, kind = $8, recurrence = $9, recurrence_end_date = $10,
			weekdays = $11, service_scope = $12
		WHERE tenant_id = $1 AND id = $2
	`, rule.TenantID, rule.ID, rule.StaffID, rule.OutletID, rule.AnchorDate,
		rule.StartMinute, rule.EndMinute, rule.Kind, rule.Recurrence,
		rule.RecurrenceEndDate, weekdaysToInts(rule.Weekdays), rule.ServiceScope)
	return err
}

func (r *RuleRepository) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	if _, err := r.GetRule(ctx, tenantID, ruleID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, ruleID)
	return err
}

func (r *RuleRepository) GetRule(ctx context.Context, tenantID, ruleID string) (model.AvailabilityRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, selectRule+` WHERE id = $1`, ruleID))
	if err != nil {
		if IsNotFound(err) {
			return model.AvailabilityRule{}, model.ErrNotFound
		}
		return model.AvailabilityRule{}, err
	}
	if rule.TenantID != tenantID {
		return model.AvailabilityRule{}, model.ErrTenantMismatch
	}
	return rule, nil
}

func (r *RuleRepository) ListRules(ctx context.Context, tenantID, staffID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, selectRule+`
		WHERE tenant_id = $1 AND ($2 = '' OR staff_id::text = $2)
		ORDER BY anchor_date, start_minute
	`, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// RulesForStaff returns rules whose active span may intersect [from, to].
// Recurrence expansion on top of this is the resolver's job.
func (r *RuleRepository) RulesForStaff(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, selectRule+`
		WHERE tenant_id = $1
			AND staff_id = $2
			AND anchor_date <= $4
			AND (recurrence = 'none' AND anchor_date >= $3
				OR recurrence <> 'none' AND (recurrence_end_date IS NULL OR recurrence_end_date >= $3))
		ORDER BY anchor_date, start_minute
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

const selectRule = `
	SELECT id::text, tenant_id::text, staff_id::text, COALESCE(outlet_id::text, ''),
		anchor_date, start_minute, end_minute, kind, recurrence, recurrence_end_date,
		COALESCE(weekdays, '{}'), COALESCE(service_scope, '{}'), created_at
	FROM availability_rules`

func scanRule(row pgx.Row) (model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	var weekdays []int32
	err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.StaffID,
		&rule.OutletID,
		&rule.AnchorDate,
		&rule.StartMinute,
		&rule.EndMinute,
		&rule.Kind,
		&rule.Recurrence,
		&rule.RecurrenceEndDate,
		&weekdays,
		&rule.ServiceScope,
		&rule.CreatedAt,
	)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	rule.AnchorDate = rule.AnchorDate.UTC()
	for _, wd := range weekdays {
		rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
	}
	return rule, nil
}

func collectRules(rows pgx.Rows) ([]model.AvailabilityRule, error) {
	var out []model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func weekdaysToInts(weekdays []time.Weekday) []int32 {
	out := make([]int32, 0, len(weekdays))
	for _, wd := range weekdays {
		out = append(out, int32(wd))
	}
	return out
}
