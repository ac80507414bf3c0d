// Package apikey authenticates programmatic requests carrying a bearer API
// key.
package apikey

import (
	"context"
	"strings"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// Authenticator validates API keys and resolves them to a Principal. Repeat
// validations are served from an LRU cache with TTL; usage accounting is
// batched off the request path.
type Authenticator struct {
	cfg   config.APIKeyConfig
	keys  store.APIKeyStore
	cache *validationCache
	usage *UsageRecorder
}

// NewAuthenticator creates an API key authenticator.
func NewAuthenticator(cfg config.APIKeyConfig, keys store.APIKeyStore, usage *UsageRecorder) *Authenticator {
	return &Authenticator{
		cfg:   cfg,
		keys:  keys,
		cache: newValidationCache(cfg.Cache),
		usage: usage,
	}
}

// FormatValid reports whether the key value has a recognized prefix.
// Malformed keys are rejected before any store lookup.
func (a *Authenticator) FormatValid(keyValue string) bool {
	return strings.HasPrefix(keyValue, a.cfg.LivePrefix+"_") ||
		strings.HasPrefix(keyValue, a.cfg.TestPrefix+"_")
}

// Authenticate validates the key value and produces an API key Principal.
func (a *Authenticator) Authenticate(ctx context.Context, keyValue string) (*domain.Principal, error) {
	if keyValue == "" {
		return nil, errors.NewAuthError(errors.CodeMissingCredential, "authentication required", errors.ErrMissingCredential)
	}
	if !a.FormatValid(keyValue) {
		return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrMalformedKey)
	}

	record, cached := a.cache.Get(keyValue)
	if !cached {
		var err error
		record, err = a.keys.GetAPIKeyByValue(ctx, keyValue)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
			}
			return nil, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err)
		}
		if !record.IsActive {
			// Revoked keys are never cached so they cannot resurrect.
			return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
		}
		a.cache.Set(keyValue, record)
	}

	if !record.IsActive {
		return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
	}

	a.usage.Record(record.ID)

	logger.Debug("api key authenticated",
		logger.String("key_id", record.ID),
		logger.String("key", logger.MaskKey(keyValue)),
	)
	return domain.NewPrincipal(record.OwnerUserID, record.ID, record.Permissions, domain.AuthMethodAPIKey), nil
}

// Lookup validates the key and returns the underlying record. Used by the
// signature verifier, which needs the key identity before checking headers.
func (a *Authenticator) Lookup(ctx context.Context, keyValue string) (*domain.APIKeyRecord, error) {
	if !a.FormatValid(keyValue) {
		return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrMalformedKey)
	}
	if record, ok := a.cache.Get(keyValue); ok && record.IsActive {
		return record, nil
	}
	record, err := a.keys.GetAPIKeyByValue(ctx, keyValue)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
		}
		return nil, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err)
	}
	if !record.IsActive {
		return nil, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
	}
	a.cache.Set(keyValue, record)
	return record, nil
}

// RecordUsage notes one successful authentication for the key.
func (a *Authenticator) RecordUsage(keyID string) {
	a.usage.Record(keyID)
}

// Invalidate drops the key value from the validation cache. Called on
// in-process revocation for immediate effect; out-of-band revocations
// converge within the cache TTL.
func (a *Authenticator) Invalidate(keyValue string) {
	a.cache.Invalidate(keyValue)
}

// CacheStats returns validation cache statistics.
func (a *Authenticator) CacheStats() CacheStats {
	return a.cache.Stats()
}
