package repository

import (
	"context"

	"github.com/neria/manager/internal/model"
	"gorm.io/gorm"
)

// CatalogRepo reads the tenant-scoped configuration the runtime resolves per call:
// providers, policies, pricing and service bindings.
type CatalogRepo struct {
	db *gorm.DB
}

func NewCatalogRepo(db *gorm.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) ProviderForTenant(ctx context.Context, tenantID, id string) (*model.Provider, error) {
	var p model.Provider
	err := r.db.WithContext(ctx).First(&p, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *CatalogRepo) PolicyForTenant(ctx context.Context, tenantID, id string) (*model.Policy, error) {
	var p model.Policy
	err := r.db.WithContext(ctx).First(&p, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// DefaultPolicy returns the oldest policy of a tenant.
func (r *CatalogRepo) DefaultPolicy(ctx context.Context, tenantID string) (*model.Policy, error) {
	var p model.Policy
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order("created_at ASC").First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *CatalogRepo) ServiceConfig(ctx context.Context, tenantID, serviceCode string) (*model.TenantServiceConfig, error) {
	var c model.TenantServiceConfig
	err := r.db.WithContext(ctx).
		First(&c, "tenant_id = ? AND service_code = ?", tenantID, serviceCode).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// EnabledEndpoints lists the enabled endpoints of a tenant service in registration order.
func (r *CatalogRepo) EnabledEndpoints(ctx context.Context, tenantID, serviceCode string) ([]model.TenantServiceEndpoint, error) {
	var out []model.TenantServiceEndpoint
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND service_code = ? AND enabled = ?", tenantID, serviceCode, true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *CatalogRepo) PricingByID(ctx context.Context, id string) (*model.PricingModel, error) {
	var p model.PricingModel
	err := r.db.WithContext(ctx).First(&p, "id = ? AND enabled = ?", id, true).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// TenantPricing returns the enabled pricing entries assigned to a tenant.
func (r *CatalogRepo) TenantPricing(ctx context.Context, tenantID string) ([]model.PricingModel, error) {
	var out []model.PricingModel
	err := r.db.WithContext(ctx).
		Joins("JOIN tenant_pricings tp ON tp.pricing_id = pricing_models.id").
		Where("tp.tenant_id = ? AND pricing_models.enabled = ?", tenantID, true).
		Order("pricing_models.created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *CatalogRepo) DefaultPricing(ctx context.Context, providerType, modelName string) (*model.PricingModel, error) {
	var p model.PricingModel
	err := r.db.WithContext(ctx).
		Where("provider_type = ? AND model = ? AND enabled = ?", providerType, modelName, true).
		Order("created_at ASC").
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Save upserts any catalog record. Used by seeding and the CLI.
func (r *CatalogRepo) Save(ctx context.Context, record any) error {
	return r.db.WithContext(ctx).Save(record).Error
}
