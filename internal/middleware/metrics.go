package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		// Route templates keep conversation ids out of the label set.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.LatencyBucket.WithLabelValues(endpoint).Observe(duration)
		metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
