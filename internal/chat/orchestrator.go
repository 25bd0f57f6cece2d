// Package chat runs tenant chat conversations on top of the runtime gateway,
// grounding answers in the service's data endpoints.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neria/manager/internal/endpoint"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/jsonvalue"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/pkg/metrics"
	"github.com/neria/manager/internal/repository"
)

const historyWindow = 20

type Store interface {
	User(ctx context.Context, tenantID, userID string) (*model.ChatUser, error)
	CreateConversation(ctx context.Context, c *model.ChatConversation) error
	SaveConversation(ctx context.Context, c *model.ChatConversation) error
	Conversation(ctx context.Context, tenantID, id string) (*model.ChatConversation, error)
	ListConversations(ctx context.Context, tenantID, userID string) ([]*model.ChatConversation, error)
	AddMessage(ctx context.Context, m *model.ChatMessage) error
	RecentMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*model.ChatMessage, error)
	ListMessages(ctx context.Context, tenantID, conversationID string) ([]*model.ChatMessage, error)
}

type Catalog interface {
	ServiceConfig(ctx context.Context, tenantID, serviceCode string) (*model.TenantServiceConfig, error)
	EnabledEndpoints(ctx context.Context, tenantID, serviceCode string) ([]model.TenantServiceEndpoint, error)
}

type Runtime interface {
	Execute(ctx context.Context, tenantID string, req model.ExecutionRequest) (*model.ExecutionResult, error)
}

type ContextBuilder interface {
	Build(ctx context.Context, in endpoint.Input) endpoint.Outcome
}

type Orchestrator struct {
	store   Store
	catalog Catalog
	runtime Runtime
	builder ContextBuilder
	now     func() time.Time
}

func NewOrchestrator(store Store, catalog Catalog, runtime Runtime, builder ContextBuilder) *Orchestrator {
	return &Orchestrator{store: store, catalog: catalog, runtime: runtime, builder: builder, now: time.Now}
}

type CreateConversationRequest struct {
	ServiceCode  string `json:"service_code" binding:"required"`
	ProviderID   string `json:"provider_id"`
	Model        string `json:"model" binding:"required"`
	Title        string `json:"title"`
	SystemPrompt string `json:"system_prompt"`
}

// AddMessageResult is the assistant turn produced for one user message.
type AddMessageResult struct {
	ConversationID string             `json:"conversation_id"`
	Message        *model.ChatMessage `json:"message"`
	Output         map[string]any     `json:"output"`
}

func (o *Orchestrator) stamp() time.Time { return o.now().UTC() }

// CreateConversation opens a conversation and stores its system message. The
// service's configured prompt wins over one supplied by the caller.
func (o *Orchestrator) CreateConversation(ctx context.Context, tenantID, userID, apiKeyID string, req CreateConversationRequest) (*model.ChatConversation, error) {
	code := strings.TrimSpace(req.ServiceCode)
	if code == "" {
		return nil, apperrors.BadRequest("service_code is required", nil)
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, apperrors.BadRequest("model is required", nil)
	}
	svc, err := o.serviceConfig(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}

	now := o.stamp()
	conv := &model.ChatConversation{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		UserID:      userID,
		ServiceCode: code,
		ProviderID:  strings.TrimSpace(req.ProviderID),
		Model:       strings.TrimSpace(req.Model),
		Title:       strings.TrimSpace(req.Title),
		APIKeyID:    apiKeyID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.CreateConversation(ctx, conv); err != nil {
		return nil, apperrors.Internal("Unable to create conversation", err)
	}

	prompt := strings.TrimSpace(req.SystemPrompt)
	if svc != nil && strings.TrimSpace(svc.SystemPrompt) != "" {
		prompt = strings.TrimSpace(svc.SystemPrompt)
	}
	if prompt != "" {
		if _, err := o.appendMessage(ctx, conv, model.RoleSystem, prompt, 0, 0); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func (o *Orchestrator) ListConversations(ctx context.Context, tenantID, userID string) ([]*model.ChatConversation, error) {
	out, err := o.store.ListConversations(ctx, tenantID, userID)
	if err != nil {
		return nil, apperrors.Internal("Unable to list conversations", err)
	}
	return out, nil
}

func (o *Orchestrator) ListMessages(ctx context.Context, tenantID, userID, conversationID string) ([]*model.ChatMessage, error) {
	if _, err := o.ownedConversation(ctx, tenantID, userID, conversationID); err != nil {
		return nil, err
	}
	out, err := o.store.ListMessages(ctx, tenantID, conversationID)
	if err != nil {
		return nil, apperrors.Internal("Unable to list messages", err)
	}
	return out, nil
}

// AddMessage stores a user turn and produces the assistant turn: a refusal
// when the service has nothing to ground the answer on, otherwise the model
// reply obtained through the runtime gateway.
func (o *Orchestrator) AddMessage(ctx context.Context, tenantID, userID, apiKeyID, conversationID, content string) (*AddMessageResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.BadRequest("content is required", nil)
	}
	conv, err := o.ownedConversation(ctx, tenantID, userID, conversationID)
	if err != nil {
		return nil, err
	}
	user, err := o.store.User(ctx, tenantID, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal("Unable to load chat user", err)
	}
	if user == nil || user.Status != model.ChatUserStatusActive {
		return nil, apperrors.Forbidden("User disabled")
	}

	log := logger.FromContext(ctx).With("tenant_id", tenantID, "conversation_id", conv.ID, "service_code", conv.ServiceCode)

	userMsg, err := o.appendMessage(ctx, conv, model.RoleUser, content, 0, 0)
	if err != nil {
		return nil, err
	}

	recent, err := o.store.RecentMessages(ctx, tenantID, conv.ID, historyWindow)
	if err != nil {
		return nil, apperrors.Internal("Unable to load conversation history", err)
	}
	history := slices.Clone(recent)
	slices.SortStableFunc(history, func(a, b *model.ChatMessage) int { return a.CreatedAt.Compare(b.CreatedAt) })

	svc, err := o.serviceConfig(ctx, tenantID, conv.ServiceCode)
	if err != nil {
		return nil, err
	}
	endpoints, err := o.catalog.EnabledEndpoints(ctx, tenantID, conv.ServiceCode)
	if err != nil {
		return nil, apperrors.Internal("Unable to load service endpoints", err)
	}

	in := endpoint.Input{
		Endpoints:       endpoints,
		PreviousMessage: previousUserMessage(history, userMsg.ID),
		Message:         content,
	}
	if svc != nil {
		in.SystemPrompt = svc.SystemPrompt
		in.AllowedTopics = svc.AllowedTopics
		in.OutOfScopeResponse = svc.OutOfScopeResponse
		in.FallbackBaseURL = svc.APIBaseURL
	}
	if len(endpoints) == 0 {
		log.Warn("chat service has no endpoints")
	}

	outcome := o.builder.Build(ctx, in)
	if outcome.Refuse {
		text := strings.TrimSpace(outcome.Suggestion)
		if text == "" {
			text = in.Refusal()
		}
		metrics.ChatRefusals.WithLabelValues(outcome.Reason).Inc()
		log.Warn("chat turn refused", "reason", outcome.Reason, "search", outcome.SearchText)
		return o.reply(ctx, conv, apiKeyID, text, 0, 0, map[string]any{"outOfScope": true})
	}

	systemPrompt := endpoint.BuildSystemPrompt(in.SystemPrompt, conv.ServiceCode, in.FallbackBaseURL, outcome.Endpoints, outcome.Context)
	messages := make([]any, 0, len(history)+1)
	messages = append(messages, map[string]any{"role": model.RoleSystem, "content": systemPrompt})
	for _, m := range history {
		if strings.EqualFold(m.Role, model.RoleSystem) {
			continue
		}
		messages = append(messages, map[string]any{"role": m.Role, "content": m.Content})
	}

	res, err := o.runtime.Execute(ctx, tenantID, model.ExecutionRequest{
		ProviderID:  conv.ProviderID,
		ServiceCode: conv.ServiceCode,
		Model:       conv.Model,
		Payload:     map[string]any{"messages": messages},
	})
	if err != nil {
		return nil, err
	}

	output := jsonvalue.FromAny(res.Output)
	return o.reply(ctx, conv, apiKeyID, AssistantContent(output),
		usageTokens(output, "prompt_tokens", "input_tokens"),
		usageTokens(output, "completion_tokens", "output_tokens"),
		res.Output)
}

func (o *Orchestrator) reply(ctx context.Context, conv *model.ChatConversation, apiKeyID, content string, tokensIn, tokensOut int, output map[string]any) (*AddMessageResult, error) {
	msg, err := o.appendMessage(ctx, conv, model.RoleAssistant, content, tokensIn, tokensOut)
	if err != nil {
		return nil, err
	}
	conv.UpdatedAt = o.stamp()
	if conv.APIKeyID == "" && apiKeyID != "" {
		conv.APIKeyID = apiKeyID
	}
	if err := o.store.SaveConversation(ctx, conv); err != nil {
		logger.LogError(ctx, err, "failed to touch conversation", "conversation_id", conv.ID)
	}
	return &AddMessageResult{ConversationID: conv.ID, Message: msg, Output: output}, nil
}

func (o *Orchestrator) appendMessage(ctx context.Context, conv *model.ChatConversation, role, content string, tokensIn, tokensOut int) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:             uuid.NewString(),
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Role:           role,
		Content:        content,
		TokensIn:       tokensIn,
		TokensOut:      tokensOut,
		CreatedAt:      o.stamp(),
	}
	if err := o.store.AddMessage(ctx, msg); err != nil {
		return nil, apperrors.Internal("Unable to store message", err)
	}
	return msg, nil
}

func (o *Orchestrator) ownedConversation(ctx context.Context, tenantID, userID, id string) (*model.ChatConversation, error) {
	conv, err := o.store.Conversation(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Unable to load conversation", err)
	}
	if conv.UserID != userID {
		return nil, apperrors.Forbidden("Conversation does not belong to user")
	}
	return conv, nil
}

func (o *Orchestrator) serviceConfig(ctx context.Context, tenantID, code string) (*model.TenantServiceConfig, error) {
	svc, err := o.catalog.ServiceConfig(ctx, tenantID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Unable to load service configuration", err)
	}
	return svc, nil
}

// previousUserMessage returns the newest user turn other than currentID.
func previousUserMessage(history []*model.ChatMessage, currentID string) string {
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if !strings.EqualFold(m.Role, model.RoleUser) || m.ID == currentID {
			continue
		}
		return m.Content
	}
	return ""
}
