package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedFixture = `
users:
  - id: u1
    email: dev@example.com
    password_hash: "$2a$10$notarealhashnotarealhashnotarealhashnotarealhash"
    permissions: ["payments:authorize"]
api_keys:
  - id: k1
    owner_user_id: u1
    key_value: ak_test_seedfixture0
    secret_for_signing: seed-secret
    permissions: ["payments:authorize"]
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFixture), 0o600))

	mem := NewMemoryStore()
	users, keys, err := LoadSeed(path, mem)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, keys)

	u, err := mem.GetUserByEmail(context.Background(), "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.NotEmpty(t, u.PasswordHash)

	k, err := mem.GetAPIKeyByValue(context.Background(), "ak_test_seedfixture0")
	require.NoError(t, err)
	assert.True(t, k.IsActive)

	secret, err := mem.GetSigningSecret(context.Background(), "ak_test_seedfixture0")
	require.NoError(t, err)
	assert.Equal(t, "seed-secret", secret)
}

func TestLoadSeed_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadSeed(filepath.Join(dir, "missing.yaml"), NewMemoryStore())
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("users: [{email: no-id@example.com}]"), 0o600))
	_, _, err = LoadSeed(bad, NewMemoryStore())
	assert.Error(t, err)
}
