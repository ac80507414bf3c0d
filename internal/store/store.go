// Package store defines the persistence collaborator interfaces the
// authentication pipeline depends on. The real user/session/key store lives
// outside this service; the pipeline only consumes these narrow interfaces.
package store

import (
	"context"
	"errors"

	"github.com/your-org/auth-gateway/internal/domain"
)

// Not-found conditions are ordinary outcomes for authentication (an unknown
// key is a credential failure, not a system failure) and are distinguished
// from availability errors, which fail the request closed with a 500.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrKeyNotFound     = errors.New("api key not found")
)

// SessionStore provides access to browser sessions.
type SessionStore interface {
	// GetSessionByID returns the session or ErrSessionNotFound.
	GetSessionByID(ctx context.Context, id string) (*domain.Session, error)

	// CreateSession persists a new session.
	CreateSession(ctx context.Context, sess *domain.Session) error

	// DeleteSession removes the session. Deleting an absent session is not
	// an error.
	DeleteSession(ctx context.Context, id string) error

	// TouchSession updates the session's last-activity timestamp.
	TouchSession(ctx context.Context, id string) error
}

// UserStore provides read access to user records.
type UserStore interface {
	// GetUserByID returns the user or ErrUserNotFound.
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	// GetUserByEmail returns the user or ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// APIKeyStore provides access to API key records.
type APIKeyStore interface {
	// GetAPIKeyByValue returns the record for the exact key value, or
	// ErrKeyNotFound. Revoked keys are returned with IsActive=false.
	GetAPIKeyByValue(ctx context.Context, keyValue string) (*domain.APIKeyRecord, error)

	// IncrementUsage adds delta to the key's usage count and refreshes
	// its last-used timestamp.
	IncrementUsage(ctx context.Context, keyID string, delta int64) error

	// GetSigningSecret resolves the per-key HMAC secret by key value.
	// Always served from the trusted store, never a cache.
	GetSigningSecret(ctx context.Context, keyValue string) (string, error)
}

// Store bundles the collaborator interfaces the pipeline needs.
type Store interface {
	SessionStore
	UserStore
	APIKeyStore
}
