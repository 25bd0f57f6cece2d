package repository

import (
	"context"
	"time"

	"github.com/neria/manager/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TenantRepo struct {
	db *gorm.DB
}

func NewTenantRepo(db *gorm.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Get(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TenantRepo) SetKillSwitch(ctx context.Context, id string, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&model.Tenant{}).Where("id = ?", id).
		Updates(map[string]any{"kill_switch": enabled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByAPIKeyHash resolves the tenant owning an active key.
func (r *TenantRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*model.Tenant, *model.ApiKey, error) {
	var key model.ApiKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND status = ?", hash, model.TenantStatusActive).
		First(&key).Error
	if err != nil {
		return nil, nil, notFound(err)
	}
	t, err := r.Get(ctx, key.TenantID)
	if err != nil {
		return nil, nil, err
	}
	return t, &key, nil
}

func (r *TenantRepo) CreateAPIKey(ctx context.Context, key *model.ApiKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

type SettingsRepo struct {
	db *gorm.DB
}

func NewSettingsRepo(db *gorm.DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (*model.SystemSetting, error) {
	var s model.SystemSetting
	if err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *SettingsRepo) Put(ctx context.Context, key, value string) error {
	s := model.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
}
