package model

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ChatUserStatusActive = "active"
)

type ChatUser struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID  string    `gorm:"size:64;index" json:"tenant_id"`
	Email     string    `gorm:"size:255" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	Status    string    `gorm:"size:32;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatConversation struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID    string    `gorm:"size:64;index:idx_conv_tenant_user" json:"tenant_id"`
	UserID      string    `gorm:"size:64;index:idx_conv_tenant_user" json:"user_id"`
	ServiceCode string    `gorm:"size:128" json:"service_code"`
	ProviderID  string    `gorm:"size:64" json:"provider_id"`
	Model       string    `gorm:"size:255" json:"model"`
	Title       string    `gorm:"size:255" json:"title,omitempty"`
	APIKeyID    string    `gorm:"size:64" json:"api_key_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	TenantID       string    `gorm:"size:64;index:idx_msg_conv" json:"tenant_id"`
	ConversationID string    `gorm:"size:64;index:idx_msg_conv" json:"conversation_id"`
	UserID         string    `gorm:"size:64" json:"user_id"`
	Role           string    `gorm:"size:32" json:"role"`
	Content        string    `gorm:"type:text" json:"content"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	CreatedAt      time.Time `gorm:"index:idx_msg_conv" json:"created_at"`
}
