package model

import (
	"time"
)

const (
	AuditStatusAccepted = "accepted"
	AuditStatusRejected = "rejected"

	ActionRuntimeExecute = "runtime.execute"
)

// AuditEvent records the outcome of one execution attempt.
type AuditEvent struct {
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string         `gorm:"size:64;index:idx_audit_tenant_created" json:"tenant_id"`
	Action    string         `gorm:"size:128" json:"action"`
	Status    string         `gorm:"size:32" json:"status"`
	Metadata  map[string]any `gorm:"serializer:json;type:text" json:"metadata"`
	CreatedAt time.Time      `gorm:"index:idx_audit_tenant_created" json:"created_at"`
}
