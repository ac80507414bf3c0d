// Package resolver classifies inbound requests by credential scheme.
package resolver

import (
	"net/http"
	"strings"
)

// Header names consumed by the pipeline.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-Key"
	HeaderSignature     = "x-signature"
	HeaderTimestamp     = "x-timestamp"
	HeaderNonce         = "x-nonce"
	HeaderCSRFToken     = "x-csrf-token"

	bearerPrefix = "Bearer "
)

// CredentialType is the classified credential scheme of a request.
type CredentialType string

const (
	CredentialNone          CredentialType = "none"
	CredentialSession       CredentialType = "session"
	CredentialAPIKey        CredentialType = "api_key"
	CredentialSignedRequest CredentialType = "signed_request"
)

// Resolver performs pure credential classification. It inspects headers and
// cookies only; it never touches stores and has no side effects.
type Resolver struct {
	sessionCookieName string
}

// New creates a Resolver for the given session cookie name.
func New(sessionCookieName string) *Resolver {
	return &Resolver{sessionCookieName: sessionCookieName}
}

// Classify determines which credential scheme applies to the request.
// Precedence when multiple indicators are present: signedRequest over apiKey
// over session. Any signature header alongside a key selects the signed
// scheme, so an incomplete header set fails verification loudly instead of
// quietly downgrading to bearer auth.
func (r *Resolver) Classify(req *http.Request) CredentialType {
	hasKey := APIKeyFrom(req) != ""
	hasSignature := req.Header.Get(HeaderSignature) != "" ||
		req.Header.Get(HeaderTimestamp) != "" ||
		req.Header.Get(HeaderNonce) != ""

	if hasKey && hasSignature {
		return CredentialSignedRequest
	}
	if hasKey {
		return CredentialAPIKey
	}
	if c, err := req.Cookie(r.sessionCookieName); err == nil && c.Value != "" {
		return CredentialSession
	}
	return CredentialNone
}

// APIKeyFrom extracts the raw API key from the Authorization bearer header
// or the X-API-Key header. Returns "" when absent.
func APIKeyFrom(req *http.Request) string {
	if auth := req.Header.Get(HeaderAuthorization); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return strings.TrimSpace(req.Header.Get(HeaderAPIKey))
}

// SessionTokenFrom extracts the signed session token from the session
// cookie. Returns "" when absent.
func (r *Resolver) SessionTokenFrom(req *http.Request) string {
	c, err := req.Cookie(r.sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
