package service

import (
	"context"
	"errors"
	"strings"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/repository"
	"github.com/shopspring/decimal"
)

type PricingStore interface {
	PricingByID(ctx context.Context, id string) (*model.PricingModel, error)
	TenantPricing(ctx context.Context, tenantID string) ([]model.PricingModel, error)
	DefaultPricing(ctx context.Context, providerType, modelName string) (*model.PricingModel, error)
}

type PricingResolver struct {
	store PricingStore
}

func NewPricingResolver(store PricingStore) *PricingResolver {
	return &PricingResolver{store: store}
}

// NormalizeProviderType folds provider aliases onto the names pricing rows use.
func NormalizeProviderType(providerType string) string {
	t := strings.ToLower(strings.TrimSpace(providerType))
	switch t {
	case "azure", "azure_openai", "azure-openai":
		return "azure-openai"
	case "aws", "bedrock", "aws-bedrock":
		return "aws-bedrock"
	case "google", "gcp", "vertex", "vertex-ai":
		return "vertex-ai"
	case "":
		return "openai"
	}
	return t
}

// Resolve picks the rate card for a call: the service override, then the
// tenant's assigned entries, then the provider default. Within the last two an
// exact model match wins over the wildcard. A nil entry with nil error means
// the call is free.
func (r *PricingResolver) Resolve(ctx context.Context, tenantID string, svc *model.TenantServiceConfig, providerType, modelName string) (*model.PricingModel, error) {
	if svc != nil && svc.PricingID != "" {
		p, err := r.store.PricingByID(ctx, svc.PricingID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	normalized := NormalizeProviderType(providerType)

	assigned, err := r.store.TenantPricing(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if p := pickPricing(assigned, normalized, modelName); p != nil {
		return p, nil
	}

	for _, m := range []string{modelName, model.WildcardModel} {
		p, err := r.store.DefaultPricing(ctx, normalized, m)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func pickPricing(entries []model.PricingModel, providerType, modelName string) *model.PricingModel {
	var wildcard *model.PricingModel
	for i := range entries {
		e := &entries[i]
		if !e.Enabled || NormalizeProviderType(e.ProviderType) != providerType {
			continue
		}
		if e.Model == modelName {
			return e
		}
		if e.Model == model.WildcardModel && wildcard == nil {
			wildcard = e
		}
	}
	return wildcard
}

var thousand = decimal.NewFromInt(1000)

// Cost is (in/1000)*inRate + (out/1000)*outRate rounded half away from zero to 6 places.
func Cost(entry *model.PricingModel, tokensIn, tokensOut int) decimal.Decimal {
	if entry == nil {
		return decimal.Zero
	}
	in := decimal.NewFromInt(int64(tokensIn)).Div(thousand).Mul(entry.InputCostPer1k)
	out := decimal.NewFromInt(int64(tokensOut)).Div(thousand).Mul(entry.OutputCostPer1k)
	return in.Add(out).Round(6)
}
