package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/apperrors"
	"golang.org/x/time/rate"
)

type KeyLimiter interface {
	Limiter(key string) *rate.Limiter
}

// RateLimitMiddleware smooths bursts per API key, or per tenant when the
// caller was trusted without a key. Must run after AuthMiddleware.
func RateLimitMiddleware(limits KeyLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := TenantFrom(c)
		if !ok {
			_ = c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized", nil))
			c.Abort()
			return
		}
		key := "tenant:" + tenant.ID
		if k := APIKeyFrom(c); k != nil {
			key = k.ID
		}

		limiter := limits.Limiter(key)
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			_ = c.Error(apperrors.TooManyRequests("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
