package middleware

import (
	"strconv"
	"time"

	"github.com/docsync/docsync/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template.
// Unmatched routes are reported as "unmatched" to keep label cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
		metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
