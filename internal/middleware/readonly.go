package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/apperrors"
)

// ReadOnlyMiddleware rejects mutating requests while enabled. Routes listed
// in allow (gin route templates) stay writable so operators can still flip
// kill switches.
func ReadOnlyMiddleware(enabled bool, allow ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if slices.Contains(allow, c.FullPath()) {
			c.Next()
			return
		}
		_ = c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
		c.Abort()
	}
}
