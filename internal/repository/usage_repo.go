package repository

import (
	"context"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UsageRepo struct {
	db *gorm.DB
}

func NewUsageRepo(db *gorm.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) Insert(ctx context.Context, e *model.UsageEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// SumBetween totals tokens and cost of a tenant in [from, to).
func (r *UsageRepo) SumBetween(ctx context.Context, tenantID string, from, to time.Time) (int64, decimal.Decimal, error) {
	var row struct {
		Tokens int64
		Cost   decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Select("COALESCE(SUM(tokens_in + tokens_out), 0) AS tokens, SUM(cost_usd) AS cost").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, from, to).
		Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	cost := decimal.Zero
	if row.Cost.Valid {
		cost = row.Cost.Decimal
	}
	return row.Tokens, cost, nil
}

func (r *UsageRepo) List(ctx context.Context, tenantID string, limit int) ([]*model.UsageEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []*model.UsageEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *UsageRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.UsageEvent{})
	return res.RowsAffected, res.Error
}
