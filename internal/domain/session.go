package domain

import "time"

// Session is a browser session record. Owned by the persistence collaborator;
// the pipeline only reads it and touches LastActivity.
type Session struct {
	// ID is the session identifier embedded in the signed cookie token
	ID string `json:"id"`

	// UserID is the owning user
	UserID string `json:"user_id"`

	// CreatedAt is when the session was established
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the absolute expiry; a session is valid iff now < ExpiresAt
	ExpiresAt time.Time `json:"expires_at"`

	// LastActivity is updated best-effort on each authenticated request
	LastActivity time.Time `json:"last_activity"`
}

// Valid reports whether the session is still live at the given instant.
// Expired sessions are treated exactly like absent ones.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// User is the minimal user record the pipeline needs to resolve a principal.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`

	// PasswordHash is the bcrypt hash checked at login. Never serialized.
	PasswordHash string `json:"-"`
}
