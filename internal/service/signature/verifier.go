// Package signature verifies HMAC-signed requests for high-value operations.
package signature

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	"github.com/your-org/auth-gateway/internal/service/resolver"
	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/security"
)

// Verifier checks request signatures against per-key secrets. Secrets are
// resolved through the trusted store on every verification, never through the
// validation cache.
type Verifier struct {
	cfg     config.SignatureConfig
	secrets store.APIKeyStore
	nonces  *NonceStore
	now     func() time.Time
}

// NewVerifier creates a signature verifier.
func NewVerifier(cfg config.SignatureConfig, secrets store.APIKeyStore, nonces *NonceStore) *Verifier {
	return &Verifier{
		cfg:     cfg,
		secrets: secrets,
		nonces:  nonces,
		now:     time.Now,
	}
}

// CanonicalString builds the exact byte sequence both sides sign: method,
// path with query, millisecond timestamp, nonce, and raw body, joined by
// newlines.
func CanonicalString(method, pathWithQuery string, timestampMillis int64, nonce string, body []byte) string {
	var b strings.Builder
	b.Grow(len(method) + len(pathWithQuery) + len(nonce) + len(body) + 24)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(pathWithQuery)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestampMillis, 10))
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.Write(body)
	return b.String()
}

// Sign computes the hex-encoded HMAC-SHA256 of the canonical string.
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseSignedRequest extracts the signature headers from the request. All
// three headers must be present; a missing one fails before any crypto work.
func ParseSignedRequest(r *http.Request) (*domain.SignedRequestContext, error) {
	sig := r.Header.Get(resolver.HeaderSignature)
	ts := r.Header.Get(resolver.HeaderTimestamp)
	nonce := r.Header.Get(resolver.HeaderNonce)
	if sig == "" || ts == "" || nonce == "" {
		return nil, errors.NewAuthError(errors.CodeInvalidSignature, "incomplete signed request", errors.ErrMissingSignatureHeaders)
	}
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, errors.NewAuthError(errors.CodeMalformedInput, "malformed timestamp", errors.ErrMissingSignatureHeaders)
	}
	return &domain.SignedRequestContext{
		Method:            r.Method,
		CanonicalPath:     r.URL.RequestURI(),
		TimestampMillis:   millis,
		Nonce:             nonce,
		ProvidedSignature: sig,
	}, nil
}

// Verify validates one signed request. Checks run cheapest first: timestamp
// window, then replay, then the HMAC itself. The nonce is recorded only after
// the signature proves authentic so forged requests cannot poison the store.
func (v *Verifier) Verify(ctx context.Context, keyValue string, sr *domain.SignedRequestContext, body []byte) error {
	now := v.now()
	ts := time.UnixMilli(sr.TimestampMillis)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.cfg.Window {
		return errors.NewAuthError(errors.CodeTimestampSkew, "request timestamp outside accepted window", errors.ErrTimestampOutOfWindow)
	}

	if v.nonces.Seen(sr.NonceKey()) {
		metrics.DefaultMetrics.ReplayDetectionsTotal.Inc()
		return errors.NewAuthError(errors.CodeReplayDetected, "request already processed", errors.ErrReplayDetected)
	}

	secret, err := v.secrets.GetSigningSecret(ctx, keyValue)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidOrRevokedKey)
		}
		return errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err)
	}

	canonical := CanonicalString(sr.Method, sr.CanonicalPath, sr.TimestampMillis, sr.Nonce, body)
	expected := Sign(secret, canonical)
	if !security.SecureCompare(expected, sr.ProvidedSignature) {
		return errors.NewAuthError(errors.CodeInvalidSignature, "signature verification failed", errors.ErrInvalidSignature)
	}

	// Entries stay long enough to catch any replay that could still pass the
	// timestamp check.
	expiry := ts.Add(2 * v.cfg.Window)
	if !v.nonces.Record(sr.NonceKey(), expiry) {
		metrics.DefaultMetrics.ReplayDetectionsTotal.Inc()
		return errors.NewAuthError(errors.CodeReplayDetected, "request already processed", errors.ErrReplayDetected)
	}
	return nil
}
