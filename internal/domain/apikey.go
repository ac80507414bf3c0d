package domain

import (
	"strconv"
	"time"
)

// APIKeyRecord is the persisted state of one API key. Exactly one active key
// value maps to at most one owner; revoked keys never validate again.
type APIKeyRecord struct {
	// ID is the key's stable identifier (used as the rate-limit identity)
	ID string `json:"id"`

	// OwnerUserID is the owning user
	OwnerUserID string `json:"owner_user_id"`

	// KeyValue is the full bearer value, e.g. "ak_live_..."
	KeyValue string `json:"key_value"`

	// SecretForSigning is the per-key HMAC secret for signed requests.
	// Resolved only through the trusted store, never the validation cache.
	SecretForSigning string `json:"-"`

	// Permissions are copied onto the principal on successful authentication
	Permissions []string `json:"permissions"`

	// IsActive is false once the key has been revoked
	IsActive bool `json:"is_active"`

	// UsageCount counts successful authentications
	UsageCount int64 `json:"usage_count"`

	// LastUsedAt is the time of the most recent successful authentication
	LastUsedAt time.Time `json:"last_used_at"`

	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// SignedRequestContext is the ephemeral view of one signed request. It exists
// only for the duration of signature verification.
type SignedRequestContext struct {
	Method            string
	CanonicalPath     string
	TimestampMillis   int64
	Nonce             string
	ProvidedSignature string
}

// NonceKey is the replay-store key for this request: nonce and timestamp
// bound together so the same nonce with a fresh timestamp is a new entry.
func (c *SignedRequestContext) NonceKey() string {
	return c.Nonce + "-" + strconv.FormatInt(c.TimestampMillis, 10)
}
