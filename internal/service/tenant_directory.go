package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/repository"
	"golang.org/x/time/rate"
)

type APIKeyStore interface {
	GetByAPIKeyHash(ctx context.Context, hash string) (*model.Tenant, *model.ApiKey, error)
	Get(ctx context.Context, id string) (*model.Tenant, error)
}

// TenantDirectory authenticates callers and hands out a burst limiter per API key.
// The burst limiter only smooths traffic at the edge; policy rate limits are
// enforced by the runtime gateway.
type TenantDirectory struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter // Key: ApiKey ID
	repo     APIKeyStore
	qps      rate.Limit
	burst    int
}

func NewTenantDirectory(repo APIKeyStore, qps float64, burst int) *TenantDirectory {
	if qps <= 0 {
		qps = 20
	}
	if burst <= 0 {
		burst = int(qps * 2)
	}
	return &TenantDirectory{
		limiters: make(map[string]*rate.Limiter),
		repo:     repo,
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

// HashAPIKey is the storage form of a raw API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func (d *TenantDirectory) Authenticate(ctx context.Context, rawKey string) (*model.Tenant, *model.ApiKey, error) {
	if strings.TrimSpace(rawKey) == "" {
		return nil, nil, apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil)
	}
	tenant, key, err := d.repo.GetByAPIKeyHash(ctx, HashAPIKey(rawKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.New(apperrors.ErrAuthFailed, "invalid API key", nil)
	}
	if err != nil {
		return nil, nil, apperrors.Internal("Unable to verify API key", err)
	}
	return tenant, key, nil
}

// Lookup resolves a tenant by id for deployments that trust an upstream proxy.
func (d *TenantDirectory) Lookup(ctx context.Context, tenantID string) (*model.Tenant, error) {
	t, err := d.repo.Get(ctx, tenantID)
	if err != nil {
		return nil, notFoundOr(err, "Tenant not found", "Unable to load tenant")
	}
	return t, nil
}

func (d *TenantDirectory) Limiter(keyID string) *rate.Limiter {
	d.mu.RLock()
	l, ok := d.limiters[keyID]
	d.mu.RUnlock()
	if ok {
		return l
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.limiters[keyID]; ok {
		return l
	}
	l = rate.NewLimiter(d.qps, d.burst)
	d.limiters[keyID] = l
	return l
}
