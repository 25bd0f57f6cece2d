package repository

import (
	"context"

	"github.com/neria/manager/internal/model"
	"gorm.io/gorm"
)

type ChatRepo struct {
	db *gorm.DB
}

func NewChatRepo(db *gorm.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) User(ctx context.Context, tenantID, userID string) (*model.ChatUser, error) {
	var u model.ChatUser
	if err := r.db.WithContext(ctx).First(&u, "id = ? AND tenant_id = ?", userID, tenantID).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *ChatRepo) CreateUser(ctx context.Context, u *model.ChatUser) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *ChatRepo) CreateConversation(ctx context.Context, c *model.ChatConversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// Conversation loads a conversation of the tenant regardless of owner.
func (r *ChatRepo) Conversation(ctx context.Context, tenantID, id string) (*model.ChatConversation, error) {
	var c model.ChatConversation
	err := r.db.WithContext(ctx).
		First(&c, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// SaveConversation persists updated conversation fields such as UpdatedAt.
func (r *ChatRepo) SaveConversation(ctx context.Context, c *model.ChatConversation) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ChatRepo) ListConversations(ctx context.Context, tenantID, userID string) ([]*model.ChatConversation, error) {
	var out []*model.ChatConversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

func (r *ChatRepo) AddMessage(ctx context.Context, m *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// RecentMessages returns the newest limit messages of a conversation, newest first.
func (r *ChatRepo) RecentMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*model.ChatMessage, error) {
	var out []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND conversation_id = ?", tenantID, conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *ChatRepo) ListMessages(ctx context.Context, tenantID, conversationID string) ([]*model.ChatMessage, error) {
	var out []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND conversation_id = ?", tenantID, conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
