// Package auth provides authentication primitives for the Launchboard server:
// opaque session token generation, API token generation/validation with bcrypt
// hashing, and password hashing.
// Two authentication methods are supported: session tokens (HttpOnly cookie,
// IP-bound, short-lived) and API tokens (Authorization: Bearer, long-lived).
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenLength is the length of the random part of a token in bytes
	TokenLength = 32

	// LookupPrefixLength is the number of leading characters stored in
	// plaintext so token validation can narrow candidates with an indexed
	// query before running bcrypt on each row.
	LookupPrefixLength = 12

	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// GenerateAPIToken creates a new random API token with the given prefix.
// Returns: full token (to show once), bcrypt hash (to store), lookup prefix,
// and the masked preview shown in listings afterwards.
func GenerateAPIToken(prefix string) (token string, hash string, lookupPrefix string, masked string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// URL-safe so the token survives copy/paste into headers and env vars.
	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := prefix + randomPart

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullToken), BcryptCost)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to hash API token: %w", err)
	}

	return fullToken, string(hashBytes), fullToken[:LookupPrefixLength], MaskToken(fullToken), nil
}

// MaskToken derives the only preview of a token retrievable after creation:
// the first LookupPrefixLength characters, an ellipsis, and the last 4.
func MaskToken(token string) string {
	if len(token) <= LookupPrefixLength+4 {
		return token
	}
	return token[:LookupPrefixLength] + "..." + token[len(token)-4:]
}

// ValidateAPIToken checks if a provided token matches the stored hash
func ValidateAPIToken(providedToken, storedHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedToken))
	return err == nil
}

// GenerateSessionToken creates an opaque session secret for the cookie.
// Session tokens are stored server-side as-is and deleted on logout, so they
// are revocable immediately, unlike anything self-describing.
func GenerateSessionToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCSRFToken creates the random value paired between the CSRF cookie
// and the submitted form field.
func GenerateCSRFToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ExtractBearerToken extracts the token from an Authorization header.
// Expected format: "Bearer lb_abc123xyz..."
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}

	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}

	return token, nil
}
