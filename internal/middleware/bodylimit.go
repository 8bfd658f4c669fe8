package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
)

// BodyLimitMiddleware caps the request body at maxBytes. The limit is
// enforced by wrapping the body reader, so oversized payloads are rejected
// as soon as the handler reads past the cap rather than being buffered whole.
// Requests that declare an oversized Content-Length up front are rejected
// without reading anything.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			respond.Error(c, respond.CodePayloadTooLarge, "Request body too large")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
