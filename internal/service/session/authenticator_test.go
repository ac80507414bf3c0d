package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/errors"
)

func testAuthenticator(t *testing.T) (*Authenticator, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	auth := NewAuthenticator(config.SessionConfig{
		CookieName:    "gw_session",
		SigningSecret: "test-secret",
		TokenTTL:      24 * time.Hour,
	}, mem, mem)
	return auth, mem
}

func seedSession(t *testing.T, mem *store.MemoryStore, expiresAt time.Time) *domain.Session {
	t.Helper()
	mem.PutUser(&domain.User{ID: "u1", Email: "a@example.com", Permissions: []string{"payments:authorize"}})
	sess := &domain.Session{
		ID:        "s1",
		UserID:    "u1",
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
	mem.PutSession(sess)
	return sess
}

func TestAuthenticate_ValidSession(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(time.Hour))

	token, err := auth.IssueToken(sess.ID, sess.ExpiresAt)
	require.NoError(t, err)

	p, sess2, err := auth.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "s1", sess2.ID)
	assert.Equal(t, "u1", p.UserID())
	assert.Equal(t, domain.AuthMethodSession, p.AuthMethod())
	assert.True(t, p.HasPermission("payments:authorize"))
}

func TestAuthenticate_TouchUpdatesLastActivity(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(time.Hour))

	token, err := auth.IssueToken(sess.ID, sess.ExpiresAt)
	require.NoError(t, err)

	before := time.Now()
	_, _, err = auth.Authenticate(context.Background(), token)
	require.NoError(t, err)

	got, err := mem.GetSessionByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, got.LastActivity.Before(before))
}

func TestAuthenticate_MissingToken(t *testing.T) {
	auth, _ := testAuthenticator(t)

	_, _, err := auth.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	auth, _ := testAuthenticator(t)

	_, _, err := auth.Authenticate(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(time.Hour))

	other := NewAuthenticator(config.SessionConfig{SigningSecret: "other-secret"}, mem, mem)
	token, err := other.IssueToken(sess.ID, sess.ExpiresAt)
	require.NoError(t, err)

	_, _, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestAuthenticate_ExpiredSessionRecord(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(-time.Minute))

	// Token itself still verifies; the session record decides.
	token, err := auth.IssueToken(sess.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, _, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))

	var authErr *errors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, errors.CodeSessionExpired, authErr.Code)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(time.Hour))

	token, err := auth.IssueToken(sess.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, _, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))
}

func TestAuthenticate_UnknownSession(t *testing.T) {
	auth, _ := testAuthenticator(t)

	token, err := auth.IssueToken("no-such-session", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, _, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))
}

func TestAuthenticate_OrphanedSession(t *testing.T) {
	auth, mem := testAuthenticator(t)
	sess := seedSession(t, mem, time.Now().Add(time.Hour))
	mem.DeleteUser("u1")

	token, err := auth.IssueToken(sess.ID, sess.ExpiresAt)
	require.NoError(t, err)

	_, _, err = auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))

	var authErr *errors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, errors.CodeInvalidCredential, authErr.Code)
}
