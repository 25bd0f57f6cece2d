package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is a tenant-owned LLM provider account.
type Provider struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID    string    `gorm:"size:64;index" json:"tenant_id"`
	Type        string    `gorm:"size:64" json:"type"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	Credentials string    `gorm:"type:text" json:"-"` // encrypted JSON blob
	Enabled     bool      `gorm:"not null" json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Policy is the quota, rate and redaction configuration enforced before a provider call.
type Policy struct {
	ID                   string          `gorm:"primaryKey;size:64" json:"id"`
	TenantID             string          `gorm:"size:64;index" json:"tenant_id"`
	MaxRequestsPerMinute int             `json:"max_requests_per_minute"`
	MaxTokensPerDay      int64           `json:"max_tokens_per_day"`
	MaxCostPerDayUSD     decimal.Decimal `gorm:"type:decimal(18,6)" json:"max_cost_per_day_usd"`
	RedactionEnabled     bool            `json:"redaction_enabled"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// WildcardModel matches any model of a provider type in pricing lookups.
const WildcardModel = "*"

// PricingModel holds USD rates per 1000 tokens for a provider type and model.
type PricingModel struct {
	ID              string          `gorm:"primaryKey;size:64" json:"id"`
	ProviderType    string          `gorm:"size:64;index:idx_pricing_provider_model" json:"provider_type"`
	Model           string          `gorm:"size:255;index:idx_pricing_provider_model" json:"model"`
	InputCostPer1k  decimal.Decimal `gorm:"type:decimal(18,8)" json:"input_cost_per_1k"`
	OutputCostPer1k decimal.Decimal `gorm:"type:decimal(18,8)" json:"output_cost_per_1k"`
	Enabled         bool            `gorm:"not null" json:"enabled"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TenantPricing assigns a pricing entry to a tenant.
type TenantPricing struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index" json:"tenant_id"`
	PricingID string    `gorm:"size:64" json:"pricing_id"`
	CreatedAt time.Time `json:"created_at"`
}
