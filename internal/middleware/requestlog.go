package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/pkg/redact"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxLoggedBody = 4 << 10
)

// RequestLogMiddleware tags each request with an id, installs a request
// scoped logger and writes one access line when the request completes.
// Request bodies are only logged at debug level and always redacted.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)

		log := logger.With("request_id", reqID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), log))

		var reqBody []byte
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))
		}

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if tenant, ok := TenantFrom(c); ok {
			fields = append(fields, "tenant_id", tenant.ID)
		}
		log.Info("request completed", fields...)
		if len(reqBody) > 0 {
			log.Debug("request body", "body", redactBody(reqBody))
		}
	}
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	out, ok := redact.JSON(body)
	if !ok {
		return "[redacted]"
	}
	if len(out) > maxLoggedBody {
		return string(out[:maxLoggedBody]) + "..."
	}
	return string(out)
}
