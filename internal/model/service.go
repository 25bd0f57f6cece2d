package model

import "time"

// TenantServiceConfig binds a catalog service to a tenant with optional overrides.
type TenantServiceConfig struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	TenantID     string `gorm:"size:64;uniqueIndex:idx_tenant_service" json:"tenant_id"`
	ServiceCode  string `gorm:"size:128;uniqueIndex:idx_tenant_service" json:"service_code"`
	SystemPrompt string `gorm:"type:text" json:"system_prompt"`
	APIBaseURL   string `gorm:"size:1024" json:"api_base_url"`
	ProviderID   string `gorm:"size:64" json:"provider_id,omitempty"`
	PolicyID     string `gorm:"size:64" json:"policy_id,omitempty"`
	PricingID    string `gorm:"size:64" json:"pricing_id,omitempty"`

	// AllowedTopics and OutOfScopeResponse take precedence over the
	// equivalent directive lines embedded in SystemPrompt.
	AllowedTopics      []string `gorm:"serializer:json;type:text" json:"allowed_topics,omitempty"`
	OutOfScopeResponse string   `gorm:"type:text" json:"out_of_scope_response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantServiceEndpoint is a tenant-registered read-only REST data source.
type TenantServiceEndpoint struct {
	ID           string            `gorm:"primaryKey;size:64" json:"id"`
	TenantID     string            `gorm:"size:64;index:idx_endpoint_service" json:"tenant_id"`
	ServiceCode  string            `gorm:"size:128;index:idx_endpoint_service" json:"service_code"`
	Slug         string            `gorm:"size:128" json:"slug"`
	Method       string            `gorm:"size:16;default:GET" json:"method"`
	Path         string            `gorm:"size:1024" json:"path"`
	BaseURL      string            `gorm:"size:1024" json:"base_url"`
	Headers      map[string]string `gorm:"serializer:json;type:text" json:"headers"`
	ResponsePath string            `gorm:"size:255" json:"response_path"`
	Enabled      bool              `gorm:"not null" json:"enabled"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
