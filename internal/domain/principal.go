package domain

import "context"

// AuthMethod identifies which credential scheme authenticated a request.
type AuthMethod string

const (
	AuthMethodSession       AuthMethod = "session"
	AuthMethodAPIKey        AuthMethod = "api_key"
	AuthMethodSignedRequest AuthMethod = "signed_request"
)

// Principal is the resolved identity for one authenticated request. It is
// created fresh per request, never persisted, and immutable after creation:
// the permission set is copied at construction and only exposed through
// read-only accessors.
type Principal struct {
	userID      string
	apiKeyID    string
	permissions map[string]struct{}
	authMethod  AuthMethod
}

// NewPrincipal creates a Principal. The permissions slice is copied.
func NewPrincipal(userID, apiKeyID string, permissions []string, method AuthMethod) *Principal {
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		perms[p] = struct{}{}
	}
	return &Principal{
		userID:      userID,
		apiKeyID:    apiKeyID,
		permissions: perms,
		authMethod:  method,
	}
}

// UserID returns the authenticated user id.
func (p *Principal) UserID() string { return p.userID }

// APIKeyID returns the API key id, or "" for session authentication.
func (p *Principal) APIKeyID() string { return p.apiKeyID }

// AuthMethod returns the credential scheme that produced this principal.
func (p *Principal) AuthMethod() AuthMethod { return p.authMethod }

// HasPermission reports whether the principal carries the given permission.
func (p *Principal) HasPermission(perm string) bool {
	_, ok := p.permissions[perm]
	return ok
}

// Permissions returns a copy of the permission set.
func (p *Principal) Permissions() []string {
	out := make([]string, 0, len(p.permissions))
	for perm := range p.permissions {
		out = append(out, perm)
	}
	return out
}

// IdentityKey returns the rate-limit identity for this principal: the API key
// id when present, else the user id. Never derived from request-body values.
func (p *Principal) IdentityKey() string {
	if p.apiKeyID != "" {
		return p.apiKeyID
	}
	return p.userID
}

// principalKey is the context key for the authenticated principal.
type principalKey struct{}

// WithPrincipal attaches the authenticated principal to the request context
// for downstream business-logic handlers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the authenticated principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// sessionKey is the context key for the authenticated browser session.
type sessionKey struct{}

// WithSession attaches the session a request authenticated with. Only set
// for session-cookie authentication.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom extracts the authenticated session from the context.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
