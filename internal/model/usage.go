package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageEvent is an append-only record of one provider call.
type UsageEvent struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	TenantID    string          `gorm:"size:64;index:idx_usage_tenant_created" json:"tenant_id"`
	ProviderID  string          `gorm:"size:64" json:"provider_id"`
	Model       string          `gorm:"size:255" json:"model"`
	ServiceCode string          `gorm:"size:128" json:"service_code,omitempty"`
	TokensIn    int             `json:"tokens_in"`
	TokensOut   int             `json:"tokens_out"`
	CostUSD     decimal.Decimal `gorm:"type:decimal(18,6)" json:"cost_usd"`
	CreatedAt   time.Time       `gorm:"index:idx_usage_tenant_created" json:"created_at"`
}
