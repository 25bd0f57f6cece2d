package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
)

const (
	HeaderAPIKey   = "X-Api-Key"
	HeaderTenantID = "X-Tenant-Id"

	ContextTenantKey = "tenant"
	ContextAPIKey    = "api_key"
)

type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*model.Tenant, *model.ApiKey, error)
	Lookup(ctx context.Context, tenantID string) (*model.Tenant, error)
}

// AuthMiddleware resolves the calling tenant from X-Api-Key. When API keys
// are not required, a request without one may name its tenant in
// X-Tenant-Id; that mode is meant for deployments behind a trusted proxy.
func AuthMiddleware(cfg *config.Config, auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
			if cfg != nil && !cfg.Auth.RequireAPIKey && tenantID != "" {
				tenant, err := auth.Lookup(ctx, tenantID)
				if err != nil {
					_ = c.Error(err)
					c.Abort()
					return
				}
				c.Set(ContextTenantKey, tenant)
				c.Next()
				return
			}
			_ = c.Error(apperrors.New(apperrors.ErrAuthFailed, "missing API key", nil))
			c.Abort()
			return
		}

		tenant, key, err := auth.Authenticate(ctx, apiKey)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextTenantKey, tenant)
		c.Set(ContextAPIKey, key)
		c.Next()
	}
}

// TenantFrom returns the tenant resolved by AuthMiddleware.
func TenantFrom(c *gin.Context) (*model.Tenant, bool) {
	v, ok := c.Get(ContextTenantKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*model.Tenant)
	return t, ok && t != nil
}

// APIKeyFrom returns the API key used by the caller, if any.
func APIKeyFrom(c *gin.Context) *model.ApiKey {
	v, ok := c.Get(ContextAPIKey)
	if !ok {
		return nil
	}
	k, _ := v.(*model.ApiKey)
	return k
}
