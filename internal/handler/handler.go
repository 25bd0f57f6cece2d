package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/middleware"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
)

// tenantOf returns the authenticated tenant or records an auth error on c.
func tenantOf(c *gin.Context) (*model.Tenant, bool) {
	tenant, ok := middleware.TenantFrom(c)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing tenant context", nil))
		return nil, false
	}
	return tenant, true
}

func apiKeyID(c *gin.Context) string {
	if k := middleware.APIKeyFrom(c); k != nil {
		return k.ID
	}
	return ""
}

func queryLimit(c *gin.Context, def, max int) int {
	limit := def
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return min(limit, max)
}
