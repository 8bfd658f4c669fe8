// Package repositories implements database access for the Launchboard server.
// Repositories follow a uniform contract: lookups return (nil, nil) when the
// row does not exist, and sentinel errors below mark domain conflicts that
// handlers translate into specific API error codes.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrUsernameTaken is returned when registration collides with an
	// existing username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrConfigExists is returned by Create when a live configuration row
	// already exists for the (user, config) pair.
	ErrConfigExists = errors.New("configuration already exists")

	// ErrStaleData is returned when a caller-supplied expectedUpdatedAt fence
	// does not match the stored updated_at; the row is left unchanged.
	ErrStaleData = errors.New("configuration was modified by another writer")
)

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
