// Package session authenticates browser requests carrying a signed session
// cookie.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// Authenticator verifies signed session tokens and resolves them to a
// Principal.
type Authenticator struct {
	cfg      config.SessionConfig
	sessions store.SessionStore
	users    store.UserStore
	now      func() time.Time
}

// tokenClaims is the session token payload: just the session id and the
// standard expiry.
type tokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewAuthenticator creates a session authenticator.
func NewAuthenticator(cfg config.SessionConfig, sessions store.SessionStore, users store.UserStore) *Authenticator {
	return &Authenticator{
		cfg:      cfg,
		sessions: sessions,
		users:    users,
		now:      time.Now,
	}
}

// IssueToken signs a session token for the given session. The token expiry
// mirrors the session record's expiry so the cookie cannot outlive the
// session.
func (a *Authenticator) IssueToken(sessionID string, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.SigningSecret))
}

// Authenticate verifies the token signature and expiry, loads the session
// and owning user, and produces a session Principal. The session is returned
// alongside so callers can bind per-session state (CSRF tokens) to it. The
// session's last-activity timestamp is updated best-effort; a failed touch
// never fails the request.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Principal, *domain.Session, error) {
	if token == "" {
		return nil, nil, errors.NewAuthError(errors.CodeMissingCredential, "authentication required", errors.ErrMissingCredential)
	}

	sessionID, err := a.verifyToken(token)
	if err != nil {
		return nil, nil, err
	}

	sess, err := a.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			// Missing and expired sessions are indistinguishable to clients.
			return nil, nil, errors.NewAuthError(errors.CodeSessionExpired, "session expired", errors.ErrSessionExpired)
		}
		return nil, nil, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err)
	}
	if !sess.Valid(a.now()) {
		return nil, nil, errors.NewAuthError(errors.CodeSessionExpired, "session expired", errors.ErrSessionExpired)
	}

	user, err := a.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Orphaned session: the owning user is gone. Hard failure.
			return nil, nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrUserNotFound)
		}
		return nil, nil, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err)
	}

	if err := a.sessions.TouchSession(ctx, sess.ID); err != nil {
		logger.Debug("session touch failed",
			logger.String("session_id", sess.ID),
			logger.Err(err),
		)
	}

	return domain.NewPrincipal(user.ID, "", user.Permissions, domain.AuthMethodSession), sess, nil
}

// verifyToken checks the token's signature and expiry and extracts the
// session id.
func (a *Authenticator) verifyToken(token string) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return []byte(a.cfg.SigningSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return a.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.NewAuthError(errors.CodeSessionExpired, "session expired", errors.ErrSessionExpired)
		}
		return "", errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidToken)
	}
	if !parsed.Valid || claims.SessionID == "" {
		return "", errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidToken)
	}
	return claims.SessionID, nil
}
