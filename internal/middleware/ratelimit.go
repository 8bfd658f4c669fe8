package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/ratelimit"
	"github.com/launchboard/launchboard/internal/telemetry"
)

// RateLimitMiddleware applies a policy keyed by client IP. On rejection it
// emits the budget headers plus Retry-After and answers with the uniform
// error envelope. On backend failure the request is allowed through: an
// unreachable Redis must not take the API down with it.
func RateLimitMiddleware(policy *ratelimit.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := policy.Check(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		for k, v := range policy.Headers(res) {
			c.Header(k, v)
		}
		if !res.Allowed {
			telemetry.RateLimitRejectionsTotal.WithLabelValues(policy.Name).Inc()
			respond.Error(c, respond.CodeRateLimitExceeded, "Too many requests")
			return
		}
		c.Next()
	}
}
