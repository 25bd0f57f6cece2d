package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/pkg/apperrors"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards operator routes. Without a configured key every
// admin route is closed.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			_ = c.Error(apperrors.Forbidden("admin key not configured"))
			c.Abort()
			return
		}
		got := c.GetHeader(HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(cfg.Auth.AdminKey)) != 1 {
			_ = c.Error(apperrors.New(apperrors.ErrAuthFailed, "invalid admin key", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
