package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header checked for an inbound correlation id and
	// set on every response.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the Gin context key holding the request id.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware assigns each request a correlation id, honoring one
// supplied by the client so ids survive proxies and retries.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id from the context, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}
