package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteAcceptedRecordsUsageAndAudit(t *testing.T) {
	h := newHarness(t)
	res, err := h.execute(t, model.ExecutionRequest{RequestID: "req-1", Payload: map[string]any{"messages": []any{}}})
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "ok", res.Output["response"])

	events, err := h.usage.ListEvents(context.Background(), "t1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].TokensIn)
	assert.True(t, events[0].CostUSD.IsZero(), "no pricing configured")

	require.Equal(t, 1, h.audit.count())
	ev := h.audit.last()
	assert.Equal(t, model.AuditStatusAccepted, ev.Status)
	assert.Equal(t, model.ActionRuntimeExecute, ev.Action)
	assert.Equal(t, map[string]any{"providerId": "p1", "requestId": "req-1", "model": "gpt-4o"}, ev.Metadata)
}

func TestExecuteGeneratesRequestID(t *testing.T) {
	h := newHarness(t)
	res, err := h.execute(t, model.ExecutionRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RequestID)
}

func TestExecuteForbiddenWhenDisabled(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(t *testing.T, h *harness){
		"tenant kill switch": func(t *testing.T, h *harness) {
			require.NoError(t, h.killSwitch.SetTenantKillSwitch(ctx, "t1", true))
		},
		"global kill switch": func(t *testing.T, h *harness) {
			require.NoError(t, h.killSwitch.SetGlobalKillSwitch(ctx, true))
		},
		"suspended tenant": func(t *testing.T, h *harness) {
			require.NoError(t, h.db.Model(&model.Tenant{}).Where("id = ?", "t1").Update("status", "suspended").Error)
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(t, h)
			_, err := h.execute(t, model.ExecutionRequest{RequestID: "r"})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrForbidden))
			assert.Equal(t, 0, h.dispatcher.calls)

			ev := h.audit.last()
			require.NotNil(t, ev)
			assert.Equal(t, model.AuditStatusRejected, ev.Status)
			assert.Equal(t, "Tenant is disabled", ev.Metadata["reason"])
			assert.Equal(t, "r", ev.Metadata["requestId"])
		})
	}
}

func TestExecuteUnknownTenant(t *testing.T) {
	h := newHarness(t)
	_, err := h.gateway.Execute(context.Background(), "ghost", model.ExecutionRequest{ProviderID: "p1", Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
	assert.Equal(t, 1, h.audit.count())
}

func TestExecuteProviderResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.gateway.Execute(ctx, "t1", model.ExecutionRequest{Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrBadRequest))

	_, err = h.gateway.Execute(ctx, "t1", model.ExecutionRequest{ProviderID: "nope", Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))

	require.NoError(t, h.db.Model(&model.Provider{}).Where("id = ?", "p1").Update("enabled", false).Error)
	_, err = h.gateway.Execute(ctx, "t1", model.ExecutionRequest{ProviderID: "p1", Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
	assert.Equal(t, 3, h.audit.count())
}

func TestExecuteServiceOverrides(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	now := time.Now().UTC()
	require.NoError(t, h.db.Create(&model.Provider{ID: "p2", TenantID: "t1", Type: "mock", Credentials: `{"k":"svc"}`, Enabled: true, CreatedAt: now}).Error)
	require.NoError(t, h.db.Create(&model.Policy{ID: "pol-strict", TenantID: "t1", MaxRequestsPerMinute: 1, CreatedAt: now.Add(time.Hour)}).Error)
	require.NoError(t, h.db.Create(&model.TenantServiceConfig{ID: "s1", TenantID: "t1", ServiceCode: "sales", ProviderID: "p2", PolicyID: "pol-strict", CreatedAt: now}).Error)

	_, err := h.gateway.Execute(ctx, "t1", model.ExecutionRequest{ProviderID: "p1", ServiceCode: "sales", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "svc", h.dispatcher.creds[0]["k"])
	assert.Equal(t, "p2", h.audit.last().Metadata["providerId"])

	// pol-strict allows one call per minute.
	_, err = h.gateway.Execute(ctx, "t1", model.ExecutionRequest{ServiceCode: "sales", Model: "m"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTooManyRequests))
}

func TestExecuteWithoutPolicyIsForbidden(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Where("tenant_id = ?", "t1").Delete(&model.Policy{}).Error)
	_, err := h.execute(t, model.ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrForbidden))
	assert.Equal(t, "Policy is required before runtime execution", h.audit.last().Metadata["reason"])
	assert.Equal(t, 0, h.dispatcher.calls)
}

func TestExecuteRateLimitWindow(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&model.Policy{}).Where("id = ?", "pol1").Update("max_requests_per_minute", 2).Error)

	for i := 0; i < 2; i++ {
		_, err := h.execute(t, model.ExecutionRequest{})
		require.NoError(t, err)
	}
	_, err := h.execute(t, model.ExecutionRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTooManyRequests))

	h.clock.Advance(61 * time.Second)
	_, err = h.execute(t, model.ExecutionRequest{})
	assert.NoError(t, err)
}

func TestExecuteQuotaUsesPriorTotals(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&model.Policy{}).Where("id = ?", "pol1").Update("max_tokens_per_day", 20).Error)
	h.dispatcher.result = &provider.Result{Output: map[string]any{}, TokensIn: 8, TokensOut: 4}

	// 0 -> 12 tokens, admitted.
	_, err := h.execute(t, model.ExecutionRequest{})
	require.NoError(t, err)
	// 12 < 20, admitted even though it ends at 24.
	_, err = h.execute(t, model.ExecutionRequest{})
	require.NoError(t, err)
	// 24 >= 20, rejected before dispatch.
	_, err = h.execute(t, model.ExecutionRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrForbidden))
	assert.Equal(t, "Token limit exceeded", h.audit.last().Metadata["reason"])
	assert.Equal(t, 2, h.dispatcher.calls)

	events, err := h.usage.ListEvents(context.Background(), "t1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 2, "completed calls are never invalidated")

	// New UTC day resets the totals.
	h.clock.Advance(24 * time.Hour)
	_, err = h.execute(t, model.ExecutionRequest{})
	assert.NoError(t, err)
}

func TestExecuteCostLimit(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&model.Policy{}).Where("id = ?", "pol1").Update("max_cost_per_day_usd", decimal.RequireFromString("0.01")).Error)
	require.NoError(t, h.usageStore.Insert(context.Background(), &model.UsageEvent{
		ID: "x", TenantID: "t1", CostUSD: decimal.RequireFromString("0.01"), CreatedAt: h.clock.Now().Add(-time.Hour),
	}))
	_, err := h.execute(t, model.ExecutionRequest{})
	require.Error(t, err)
	assert.Equal(t, "Cost limit exceeded", apperrors.Wrap(err).Message)
}

func TestExecuteRedactsWhenPolicyEnables(t *testing.T) {
	h := newHarness(t)
	payload := map[string]any{"messages": []any{}, "api_key": "leak"}

	_, err := h.execute(t, model.ExecutionRequest{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "leak", h.dispatcher.payloads[0]["api_key"])

	require.NoError(t, h.db.Model(&model.Policy{}).Where("id = ?", "pol1").Update("redaction_enabled", true).Error)
	_, err = h.execute(t, model.ExecutionRequest{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "***", h.dispatcher.payloads[1]["api_key"])
	assert.Equal(t, "leak", payload["api_key"], "input payload is not mutated")
}

func TestExecuteMapsDispatchErrors(t *testing.T) {
	_, invalid := provider.ParseCredentials("{bad")
	cases := []struct {
		name   string
		err    error
		want   apperrors.ErrorType
		reason string
	}{
		{"invalid argument", invalid, apperrors.ErrBadRequest, "Invalid credentials format, must be JSON"},
		{"remote failure", errors.New("connection reset"), apperrors.ErrBadGateway, "connection reset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.dispatcher.err = tc.err
			_, err := h.execute(t, model.ExecutionRequest{})
			assert.True(t, apperrors.IsType(err, tc.want))

			ev := h.audit.last()
			require.NotNil(t, ev)
			assert.Equal(t, model.AuditStatusRejected, ev.Status)
			assert.Equal(t, tc.reason, ev.Metadata["reason"])

			events, err := h.usage.ListEvents(context.Background(), "t1", 10)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestExecuteInvalidStoredCredentials(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Model(&model.Provider{}).Where("id = ?", "p1").Update("credentials", "not-json").Error)
	_, err := h.execute(t, model.ExecutionRequest{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrBadRequest))
	assert.Equal(t, 0, h.dispatcher.calls)
}

func TestExecutePricesUsage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Create(&model.PricingModel{
		ID: "pm", ProviderType: "mock", Model: "*", Enabled: true,
		InputCostPer1k: decimal.RequireFromString("0.002"), OutputCostPer1k: decimal.RequireFromString("0.004"),
		CreatedAt: time.Now().UTC(),
	}).Error)
	h.dispatcher.result = &provider.Result{Output: map[string]any{}, TokensIn: 1000, TokensOut: 1000}

	_, err := h.execute(t, model.ExecutionRequest{})
	require.NoError(t, err)
	totals, err := h.usage.Summary(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "0.006", totals.CostUSD.String())
	assert.Equal(t, int64(2000), totals.Tokens)
}
