package model

import "time"

const TenantStatusActive = "active"

// Tenant is a billed customer account, the unit of isolation for policy, quota and kill switches.
type Tenant struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Name       string    `gorm:"size:255" json:"name"`
	Status     string    `gorm:"size:32;default:active" json:"status"`
	KillSwitch bool      `gorm:"not null;default:false" json:"kill_switch"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == TenantStatusActive
}

// ApiKey authenticates tenant callers. Only the sha256 hash of the key is stored.
type ApiKey struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index" json:"tenant_id"`
	Name      string    `gorm:"size:255" json:"name"`
	KeyHash   string    `gorm:"size:128;uniqueIndex" json:"-"`
	Status    string    `gorm:"size:32;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemSetting is a key/value row holding JSON encoded settings such as the global kill switch.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
