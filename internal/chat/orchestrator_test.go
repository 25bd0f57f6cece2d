package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/neria/manager/internal/endpoint"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/jsonvalue"
	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRuntime struct {
	mu     sync.Mutex
	reqs   []model.ExecutionRequest
	output map[string]any
	err    error
}

func (f *fakeRuntime) Execute(_ context.Context, _ string, req model.ExecutionRequest) (*model.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	out := f.output
	if out == nil {
		out = map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "Hola"}}},
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		}
	}
	return &model.ExecutionResult{RequestID: "r", Output: out}, nil
}

func (f *fakeRuntime) messages(t *testing.T, i int) []any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.reqs), i)
	msgs, ok := f.reqs[i].Payload["messages"].([]any)
	require.True(t, ok)
	return msgs
}

type recordingBuilder struct {
	inner  ContextBuilder
	inputs []endpoint.Input
}

func (r *recordingBuilder) Build(ctx context.Context, in endpoint.Input) endpoint.Outcome {
	r.inputs = append(r.inputs, in)
	return r.inner.Build(ctx, in)
}

type chatHarness struct {
	db      *gorm.DB
	orch    *Orchestrator
	runtime *fakeRuntime
	builder *recordingBuilder
}

func newChatHarness(t *testing.T) *chatHarness {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.Seed(t, db)
	require.NoError(t, db.Create(&model.ChatUser{ID: "u1", TenantID: "t1", Email: "ana@example.com", Status: model.ChatUserStatusActive}).Error)
	require.NoError(t, db.Create(&model.ChatUser{ID: "u2", TenantID: "t1", Email: "bob@example.com", Status: model.ChatUserStatusActive}).Error)

	rt := &fakeRuntime{}
	rb := &recordingBuilder{inner: endpoint.NewBuilder(nil, endpoint.Config{})}
	orch := NewOrchestrator(repository.NewChatRepo(db), repository.NewCatalogRepo(db), rt, rb)

	tick := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	orch.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Millisecond)
		return tick
	}
	return &chatHarness{db: db, orch: orch, runtime: rt, builder: rb}
}

func (h *chatHarness) service(t *testing.T, cfg model.TenantServiceConfig, endpoints ...model.TenantServiceEndpoint) {
	t.Helper()
	cfg.ID = "svc-" + cfg.ServiceCode
	cfg.TenantID = "t1"
	require.NoError(t, h.db.Create(&cfg).Error)
	for i := range endpoints {
		endpoints[i].TenantID = "t1"
		endpoints[i].ServiceCode = cfg.ServiceCode
		endpoints[i].Enabled = true
		endpoints[i].CreatedAt = time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC)
		require.NoError(t, h.db.Create(&endpoints[i]).Error)
	}
}

func (h *chatHarness) conversation(t *testing.T, serviceCode string) *model.ChatConversation {
	t.Helper()
	conv, err := h.orch.CreateConversation(context.Background(), "t1", "u1", "", CreateConversationRequest{
		ServiceCode: serviceCode, ProviderID: "p1", Model: "gpt-4o", SystemPrompt: "prompt del cliente",
	})
	require.NoError(t, err)
	return conv
}

func TestCreateConversationPrefersServicePrompt(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	h.service(t, model.TenantServiceConfig{ServiceCode: "ventas", SystemPrompt: "  Prompt del servicio "})

	conv := h.conversation(t, "ventas")
	msgs, err := h.orch.ListMessages(ctx, "t1", "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Prompt del servicio", msgs[0].Content)

	// Without a service config the caller's prompt is stored.
	other := h.conversation(t, "libre")
	msgs, err = h.orch.ListMessages(ctx, "t1", "u1", other.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "prompt del cliente", msgs[0].Content)

	_, err = h.orch.CreateConversation(ctx, "t1", "u1", "", CreateConversationRequest{ServiceCode: " ", Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrBadRequest))

	convs, err := h.orch.ListConversations(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestAddMessageOwnershipAndUserStatus(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	conv := h.conversation(t, "libre")

	_, err := h.orch.AddMessage(ctx, "t1", "u1", "", "missing", "hola")
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))

	_, err = h.orch.AddMessage(ctx, "t1", "u2", "", conv.ID, "hola")
	require.Error(t, err)
	assert.Equal(t, "Conversation does not belong to user", apperrors.Wrap(err).Message)

	_, err = h.orch.ListMessages(ctx, "t1", "u2", conv.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrForbidden))

	require.NoError(t, h.db.Model(&model.ChatUser{}).Where("id = ?", "u1").Update("status", "disabled").Error)
	_, err = h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "hola")
	require.Error(t, err)
	assert.Equal(t, "User disabled", apperrors.Wrap(err).Message)
	assert.Empty(t, h.runtime.reqs)
}

func TestAddMessageScopeRefusal(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	h.service(t, model.TenantServiceConfig{
		ServiceCode:  "ventas",
		SystemPrompt: "Eres el asistente.\nScope: ventas, facturación\nOut-of-scope response: Solo hablo de ventas.",
	})
	conv := h.conversation(t, "ventas")

	res, err := h.orch.AddMessage(ctx, "t1", "u1", "key-1", conv.ID, "¿Quién ganó el partido?")
	require.NoError(t, err)
	assert.Equal(t, "Solo hablo de ventas.", res.Message.Content)
	assert.Equal(t, model.RoleAssistant, res.Message.Role)
	assert.Equal(t, map[string]any{"outOfScope": true}, res.Output)
	assert.Empty(t, h.runtime.reqs)

	msgs, err := h.orch.ListMessages(ctx, "t1", "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"system", "user", "assistant"}, []string{msgs[0].Role, msgs[1].Role, msgs[2].Role})

	var stored model.ChatConversation
	require.NoError(t, h.db.First(&stored, "id = ?", conv.ID).Error)
	assert.Equal(t, "key-1", stored.APIKeyID)
}

func TestAddMessageWithoutEndpointsCallsRuntime(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	conv := h.conversation(t, "libre")

	res, err := h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "¿Qué tiempo hace?")
	require.NoError(t, err)
	assert.Equal(t, "Hola", res.Message.Content)
	assert.Equal(t, 12, res.Message.TokensIn)
	assert.Equal(t, 3, res.Message.TokensOut)

	require.Len(t, h.runtime.reqs, 1)
	req := h.runtime.reqs[0]
	assert.Equal(t, "p1", req.ProviderID)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, "libre", req.ServiceCode)

	msgs := h.runtime.messages(t, 0)
	require.Len(t, msgs, 2, "stored system message replaced by the assembled one")
	system := msgs[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "No hay endpoints disponibles")
	assert.Equal(t, map[string]any{"role": "user", "content": "¿Qué tiempo hace?"}, msgs[1])
}

func salesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"list":[{"year":2020,"total":5},{"year":2021,"total":9}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (h *chatHarness) salesService(t *testing.T, srv *httptest.Server) {
	t.Helper()
	h.builder.inner = endpoint.NewBuilder(srv.Client(), endpoint.Config{})
	h.service(t, model.TenantServiceConfig{ServiceCode: "ventas", APIBaseURL: srv.URL},
		model.TenantServiceEndpoint{ID: "e1", Slug: "ventas-anuales", Method: "GET", Path: "/ventas"})
}

func TestAddMessageGroundsOnEndpointData(t *testing.T) {
	ctx := context.Background()
	srv := salesServer(t)
	h := newChatHarness(t)
	h.salesService(t, srv)
	conv := h.conversation(t, "ventas")

	_, err := h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "ventas de 2020")
	require.NoError(t, err)
	system := h.runtime.messages(t, 0)[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "ENDPOINT_DATA:\nslug=ventas-anuales url="+srv.URL+"/ventas")
	assert.Contains(t, system, `"total":5`)
	assert.NotContains(t, system, `"total":9`)

	// An elliptical follow-up is searched together with the previous question.
	_, err = h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "¿y en 2021?")
	require.NoError(t, err)
	last := h.builder.inputs[len(h.builder.inputs)-1]
	assert.Equal(t, "ventas de 2020", last.PreviousMessage)
	assert.Equal(t, "¿y en 2021?", last.Message)

	msgs := h.runtime.messages(t, 1)
	require.Len(t, msgs, 4)
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "¿y en 2021?", msgs[3].(map[string]any)["content"])
}

func TestAddMessageSuggestsAvailableYears(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	h.salesService(t, salesServer(t))
	conv := h.conversation(t, "ventas")

	res, err := h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "ventas de 1999")
	require.NoError(t, err)
	assert.Equal(t, "No he encontrado resultados para el año 1999. Años disponibles: 2020, 2021.", res.Message.Content)
	assert.Equal(t, map[string]any{"outOfScope": true}, res.Output)
	assert.Empty(t, h.runtime.reqs)
}

func TestAddMessagePropagatesGatewayErrors(t *testing.T) {
	ctx := context.Background()
	h := newChatHarness(t)
	h.runtime.err = apperrors.TooManyRequests("Rate limit exceeded")
	conv := h.conversation(t, "libre")

	_, err := h.orch.AddMessage(ctx, "t1", "u1", "", conv.ID, "hola")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTooManyRequests))

	msgs, err := h.orch.ListMessages(ctx, "t1", "u1", conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2, "user turn is kept")
}

func TestAssistantContent(t *testing.T) {
	cases := []struct {
		output map[string]any
		want   string
	}{
		{map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "a"}}}}, "a"},
		{map[string]any{"choices": []any{map[string]any{"text": "b"}}}, "b"},
		{map[string]any{"response": "c"}, "c"},
		{map[string]any{"other": 1}, `{"other":1}`},
	}
	for _, tc := range cases {
		v := jsonvalueOf(tc.output)
		assert.Equal(t, tc.want, AssistantContent(v))
	}
}

func TestUsageTokensFallback(t *testing.T) {
	v := jsonvalueOf(map[string]any{"usage": map[string]any{"input_tokens": 7, "prompt_tokens": "9"}})
	assert.Equal(t, 7, usageTokens(v, "prompt_tokens", "input_tokens"))
	assert.Equal(t, 0, usageTokens(v, "completion_tokens", "output_tokens"))
}

func jsonvalueOf(m map[string]any) jsonvalue.Value { return jsonvalue.FromAny(m) }
