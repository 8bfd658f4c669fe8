// Package respond shapes every API response: typed error codes with their
// HTTP status mapping and a uniform error envelope carrying a request ID for
// log correlation.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Code identifies an API failure class. The HTTP status is derived from the
// code, never chosen ad hoc at the call site.
type Code string

// Authentication
const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeSessionExpired     Code = "SESSION_EXPIRED"
)

// Authorization
const (
	CodeForbidden   Code = "FORBIDDEN"
	CodeInvalidCSRF Code = "INVALID_CSRF"
)

// Validation
const (
	CodeValidationError      Code = "VALIDATION_ERROR"
	CodeInvalidConfigID      Code = "INVALID_CONFIG_ID"
	CodeInvalidConfigData    Code = "INVALID_CONFIG_DATA"
	CodeInvalidVersionNumber Code = "INVALID_VERSION_NUMBER"
	CodeInvalidImportFile    Code = "INVALID_IMPORT_FILE"
	CodeMissingField         Code = "MISSING_FIELD"
)

// Not found
const (
	CodeConfigNotFound  Code = "CONFIG_NOT_FOUND"
	CodeVersionNotFound Code = "VERSION_NOT_FOUND"
	CodeUserNotFound    Code = "USER_NOT_FOUND"
	CodeTokenNotFound   Code = "TOKEN_NOT_FOUND"
)

// Conflict
const (
	CodeConfigAlreadyExists Code = "CONFIG_ALREADY_EXISTS"
	CodeUsernameTaken       Code = "USERNAME_TAKEN"
	CodeStaleData           Code = "STALE_DATA"
)

// Resource
const (
	CodePayloadTooLarge   Code = "PAYLOAD_TOO_LARGE"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
)

// CodeInternalError is the catch-all for unexpected failures; no internal
// detail leaks to the caller.
const CodeInternalError Code = "INTERNAL_ERROR"

var statusByCode = map[Code]int{
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeSessionExpired:     http.StatusUnauthorized,

	CodeForbidden:   http.StatusForbidden,
	CodeInvalidCSRF: http.StatusForbidden,

	CodeValidationError:      http.StatusBadRequest,
	CodeInvalidConfigID:      http.StatusBadRequest,
	CodeInvalidConfigData:    http.StatusBadRequest,
	CodeInvalidVersionNumber: http.StatusBadRequest,
	CodeInvalidImportFile:    http.StatusBadRequest,
	CodeMissingField:         http.StatusBadRequest,

	CodeConfigNotFound:  http.StatusNotFound,
	CodeVersionNotFound: http.StatusNotFound,
	CodeUserNotFound:    http.StatusNotFound,
	CodeTokenNotFound:   http.StatusNotFound,

	CodeConfigAlreadyExists: http.StatusConflict,
	CodeUsernameTaken:       http.StatusConflict,
	CodeStaleData:           http.StatusConflict,

	CodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
	CodeRateLimitExceeded: http.StatusTooManyRequests,

	CodeInternalError: http.StatusInternalServerError,
}

// Status returns the HTTP status for a code (500 for unknown codes).
func Status(code Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// requestIDKey matches middleware.RequestIDKey; duplicated here to avoid an
// import cycle between respond and middleware.
const requestIDKey = "request_id"

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId"`
}

// Error writes the error envelope and aborts the request. The request ID set
// by the request-id middleware is echoed; if the middleware did not run (unit
// tests, misordered wiring) a fresh UUID is minted so correlation never
// silently degrades.
func Error(c *gin.Context, code Code, message string) {
	ErrorWithDetails(c, code, message, "")
}

// BindError maps a request-body decode failure onto the taxonomy. A body cut
// off by the size guard mid-read surfaces as *http.MaxBytesError and is a
// payload-size problem, not a shape problem; everything else gets the caller's
// code (validation error, invalid import file).
func BindError(c *gin.Context, err error, code Code, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(c, CodePayloadTooLarge, "Request body too large")
		return
	}
	Error(c, code, message)
}

// ErrorWithDetails is Error with an optional details string (field-level
// validation information, retry hints).
func ErrorWithDetails(c *gin.Context, code Code, message, details string) {
	requestID := c.GetString(requestIDKey)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.AbortWithStatusJSON(Status(code), ErrorBody{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestID,
	})
}
