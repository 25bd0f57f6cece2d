package repository

import (
	"context"
	"time"

	"github.com/neria/manager/internal/model"
	"gorm.io/gorm"
)

type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, entry *model.AuditEvent) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepo) List(ctx context.Context, tenantID string, limit int, from, to *time.Time) ([]*model.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Model(&model.AuditEvent{})
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}
	var out []*model.AuditEvent
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *AuditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.AuditEvent{})
	return res.RowsAffected, res.Error
}
