// session.go defines the Session model for cookie-authenticated browser access.
package models

import "time"

// Session is a short-lived browser credential. The token itself is an opaque
// random secret carried in an HttpOnly cookie; the row binds it to the IP it
// was issued from, and validation rejects any other caller IP.
type Session struct {
	Token     string    `db:"token" json:"-"`
	UserID    string    `db:"user_id" json:"user_id"`
	IssuedIP  string    `db:"issued_ip" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
