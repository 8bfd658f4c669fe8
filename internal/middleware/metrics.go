package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/telemetry"
)

// MetricsMiddleware records request counts and latency. The route template
// (c.FullPath) is used instead of the raw URL so path parameters do not
// explode label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
