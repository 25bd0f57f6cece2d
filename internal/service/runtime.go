package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/pkg/metrics"
	"github.com/neria/manager/internal/provider"
	"github.com/neria/manager/internal/repository"
)

type CatalogStore interface {
	ProviderForTenant(ctx context.Context, tenantID, id string) (*model.Provider, error)
	PolicyForTenant(ctx context.Context, tenantID, id string) (*model.Policy, error)
	DefaultPolicy(ctx context.Context, tenantID string) (*model.Policy, error)
	ServiceConfig(ctx context.Context, tenantID, serviceCode string) (*model.TenantServiceConfig, error)
}

type KillSwitches interface {
	GlobalKillSwitch(ctx context.Context) (bool, error)
	TenantKillSwitch(ctx context.Context, tenantID string) (bool, error)
}

type Dispatcher interface {
	Invoke(ctx context.Context, providerType string, creds provider.Credentials, model string, payload map[string]any) (*provider.Result, error)
}

type Auditor interface {
	Record(ctx context.Context, entry *model.AuditEvent)
}

// CredentialDecrypter turns a stored provider credential blob into JSON text.
type CredentialDecrypter interface {
	Decrypt(ctx context.Context, p *model.Provider) (string, error)
}

// PlaintextCredentials is used when credentials are stored unencrypted.
type PlaintextCredentials struct{}

func (PlaintextCredentials) Decrypt(_ context.Context, p *model.Provider) (string, error) {
	return p.Credentials, nil
}

type RuntimeDeps struct {
	Tenants     interface{ Get(ctx context.Context, id string) (*model.Tenant, error) }
	Catalog     CatalogStore
	KillSwitch  KillSwitches
	Limiter     RateLimiter
	Usage       *UsageLedger
	Pricing     *PricingResolver
	Redactor    *Redactor
	Dispatcher  Dispatcher
	Audit       Auditor
	Credentials CredentialDecrypter
}

// RuntimeGateway runs one guarded provider call: tenant, kill switch,
// provider, policy, rate, quota, redaction, dispatch, accounting, audit.
type RuntimeGateway struct {
	RuntimeDeps
	now func() time.Time
}

func NewRuntimeGateway(deps RuntimeDeps) *RuntimeGateway {
	if deps.Redactor == nil {
		deps.Redactor = NewRedactor()
	}
	if deps.Credentials == nil {
		deps.Credentials = PlaintextCredentials{}
	}
	return &RuntimeGateway{RuntimeDeps: deps, now: time.Now}
}

// Execute returns a typed apperrors error when a guard rejects the call.
// Every terminal path appends exactly one audit event.
func (g *RuntimeGateway) Execute(ctx context.Context, tenantID string, req model.ExecutionRequest) (res *model.ExecutionResult, err error) {
	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = uuid.NewString()
	}
	log := logger.FromContext(ctx).With("tenant_id", tenantID, "request_id", req.RequestID)

	defer func() {
		if err == nil {
			metrics.RuntimeExecutions.WithLabelValues(model.AuditStatusAccepted).Inc()
			return
		}
		appErr := apperrors.Wrap(err)
		err = appErr
		reason := appErr.Message
		if reason == "" {
			reason = "unknown"
		}
		metrics.RuntimeExecutions.WithLabelValues(model.AuditStatusRejected).Inc()
		metrics.RuntimeRejections.WithLabelValues(string(appErr.Type)).Inc()
		log.Warn("runtime execution rejected", "code", appErr.Type, "reason", reason)
		g.Audit.Record(context.WithoutCancel(ctx), &model.AuditEvent{
			TenantID: tenantID,
			Action:   model.ActionRuntimeExecute,
			Status:   model.AuditStatusRejected,
			Metadata: map[string]any{"requestId": req.RequestID, "reason": reason},
		})
	}()

	tenant, err := g.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "Tenant not found", "Unable to load tenant")
	}

	if err := g.checkKillSwitches(ctx, tenant); err != nil {
		return nil, err
	}

	svc, err := g.serviceConfig(ctx, tenantID, req.ServiceCode)
	if err != nil {
		return nil, err
	}

	prov, err := g.resolveProvider(ctx, tenantID, req.ProviderID, svc)
	if err != nil {
		return nil, err
	}

	policy, err := g.resolvePolicy(ctx, tenantID, svc)
	if err != nil {
		return nil, err
	}

	if err := g.Limiter.Consume(ctx, tenantID, policy.MaxRequestsPerMinute); err != nil {
		return nil, err
	}

	if err := g.checkQuota(ctx, tenantID, policy); err != nil {
		return nil, err
	}

	payload := req.Payload
	if policy.RedactionEnabled {
		payload = g.Redactor.Redact(payload)
	}

	raw, err := g.Credentials.Decrypt(ctx, prov)
	if err != nil {
		return nil, apperrors.Internal("Unable to decrypt provider credentials", err)
	}
	creds, err := provider.ParseCredentials(raw)
	if err != nil {
		return nil, dispatchError(err)
	}
	result, err := g.Dispatcher.Invoke(ctx, prov.Type, creds, req.Model, payload)
	if err != nil {
		return nil, dispatchError(err)
	}

	// The provider has answered; accounting must outlive a caller that hangs up now.
	detached := context.WithoutCancel(ctx)
	g.account(detached, tenantID, req, svc, prov, result)

	g.Audit.Record(detached, &model.AuditEvent{
		TenantID: tenantID,
		Action:   model.ActionRuntimeExecute,
		Status:   model.AuditStatusAccepted,
		Metadata: map[string]any{"providerId": prov.ID, "requestId": req.RequestID, "model": req.Model},
	})
	log.Info("runtime execution accepted", "provider_id", prov.ID, "model", req.Model,
		"tokens_in", result.TokensIn, "tokens_out", result.TokensOut)

	return &model.ExecutionResult{RequestID: req.RequestID, Output: result.Output}, nil
}

func (g *RuntimeGateway) checkKillSwitches(ctx context.Context, tenant *model.Tenant) error {
	global, err := g.KillSwitch.GlobalKillSwitch(ctx)
	if err != nil {
		return apperrors.Internal("Unable to read kill switch", err)
	}
	tenantKill, err := g.KillSwitch.TenantKillSwitch(ctx, tenant.ID)
	if err != nil {
		return apperrors.Internal("Unable to read kill switch", err)
	}
	if global || tenantKill || !strings.EqualFold(tenant.Status, model.TenantStatusActive) {
		return apperrors.Forbidden("Tenant is disabled")
	}
	return nil
}

func (g *RuntimeGateway) serviceConfig(ctx context.Context, tenantID, serviceCode string) (*model.TenantServiceConfig, error) {
	code := strings.TrimSpace(serviceCode)
	if code == "" {
		return nil, nil
	}
	svc, err := g.Catalog.ServiceConfig(ctx, tenantID, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("Unable to load service configuration", err)
	}
	return svc, nil
}

func (g *RuntimeGateway) resolveProvider(ctx context.Context, tenantID, requested string, svc *model.TenantServiceConfig) (*model.Provider, error) {
	providerID := strings.TrimSpace(requested)
	if svc != nil && strings.TrimSpace(svc.ProviderID) != "" {
		providerID = strings.TrimSpace(svc.ProviderID)
	}
	if providerID == "" {
		return nil, apperrors.BadRequest("Provider is required", nil)
	}
	prov, err := g.Catalog.ProviderForTenant(ctx, tenantID, providerID)
	if err != nil {
		return nil, notFoundOr(err, "Provider not found or disabled", "Unable to load provider")
	}
	if !prov.Enabled {
		return nil, apperrors.NotFound("Provider not found or disabled")
	}
	return prov, nil
}

func (g *RuntimeGateway) resolvePolicy(ctx context.Context, tenantID string, svc *model.TenantServiceConfig) (*model.Policy, error) {
	var (
		policy *model.Policy
		err    error
	)
	if svc != nil && strings.TrimSpace(svc.PolicyID) != "" {
		policy, err = g.Catalog.PolicyForTenant(ctx, tenantID, strings.TrimSpace(svc.PolicyID))
	} else {
		policy, err = g.Catalog.DefaultPolicy(ctx, tenantID)
	}
	if errors.Is(err, repository.ErrNotFound) || (err == nil && policy == nil) {
		return nil, apperrors.Forbidden("Policy is required before runtime execution")
	}
	if err != nil {
		return nil, apperrors.Internal("Unable to load policy", err)
	}
	return policy, nil
}

// checkQuota compares totals recorded before this call; the call itself may
// overshoot and is only caught by the next one.
func (g *RuntimeGateway) checkQuota(ctx context.Context, tenantID string, policy *model.Policy) error {
	totals, err := g.Usage.DailyTotals(ctx, tenantID, g.now())
	if err != nil {
		return apperrors.Internal("Unable to compute usage totals", err)
	}
	if policy.MaxTokensPerDay > 0 && totals.Tokens >= policy.MaxTokensPerDay {
		return apperrors.Forbidden("Token limit exceeded")
	}
	if policy.MaxCostPerDayUSD.IsPositive() && totals.CostUSD.GreaterThanOrEqual(policy.MaxCostPerDayUSD) {
		return apperrors.Forbidden("Cost limit exceeded")
	}
	return nil
}

// account prices the call and appends the usage event. The provider has
// already answered, so failures here are logged and left for reconciliation.
func (g *RuntimeGateway) account(ctx context.Context, tenantID string, req model.ExecutionRequest, svc *model.TenantServiceConfig, prov *model.Provider, result *provider.Result) {
	entry, err := g.Pricing.Resolve(ctx, tenantID, svc, prov.Type, req.Model)
	if err != nil {
		logger.LogError(ctx, err, "pricing resolution failed, recording zero cost",
			"tenant_id", tenantID, "request_id", req.RequestID)
		entry = nil
	}
	event := &model.UsageEvent{
		TenantID:    tenantID,
		ProviderID:  prov.ID,
		Model:       req.Model,
		ServiceCode: strings.TrimSpace(req.ServiceCode),
		TokensIn:    result.TokensIn,
		TokensOut:   result.TokensOut,
		CostUSD:     Cost(entry, result.TokensIn, result.TokensOut),
	}
	if err := g.Usage.Record(ctx, event); err != nil {
		logger.LogError(ctx, err, "usage event write failed after provider success",
			"tenant_id", tenantID, "request_id", req.RequestID, "cost_usd", event.CostUSD.String())
	}
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(notFoundMsg)
	}
	return apperrors.Internal(internalMsg, err)
}

func dispatchError(err error) error {
	if errors.Is(err, provider.ErrInvalidArgument) {
		return apperrors.BadRequest(err.Error(), nil)
	}
	return apperrors.BadGateway(err.Error(), nil)
}
