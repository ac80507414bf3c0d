// Package pipeline composes the authentication stages applied to every
// protected request.
package pipeline

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/apikey"
	"github.com/your-org/auth-gateway/internal/service/audit"
	"github.com/your-org/auth-gateway/internal/service/csrf"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	"github.com/your-org/auth-gateway/internal/service/ratelimit"
	"github.com/your-org/auth-gateway/internal/service/resolver"
	"github.com/your-org/auth-gateway/internal/service/session"
	"github.com/your-org/auth-gateway/internal/service/signature"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/httputil"
)

// PolicyAPIKeyUsage throttles authenticated programmatic traffic per key.
const PolicyAPIKeyUsage = "apiKeyUsage"

// maxSignedBodyBytes bounds how much body a signed request may carry.
const maxSignedBodyBytes = 1 << 20

// Pipeline runs the fixed stage order for every protected request: classify
// the credential, authenticate it, apply the per-identity rate limit, check
// CSRF for state-changing browser requests, audit the outcome, and attach
// the principal. The first failing stage rejects the request; later stages
// never run.
type Pipeline struct {
	resolver *resolver.Resolver
	sessions *session.Authenticator
	apiKeys  *apikey.Authenticator
	verifier *signature.Verifier
	limiter  *ratelimit.Limiter
	csrf     *csrf.Service
	audit    *audit.Service
}

// New creates a Pipeline from its stage services.
func New(
	res *resolver.Resolver,
	sessions *session.Authenticator,
	apiKeys *apikey.Authenticator,
	verifier *signature.Verifier,
	limiter *ratelimit.Limiter,
	csrfSvc *csrf.Service,
	auditSvc *audit.Service,
) *Pipeline {
	return &Pipeline{
		resolver: res,
		sessions: sessions,
		apiKeys:  apiKeys,
		verifier: verifier,
		limiter:  limiter,
		csrf:     csrfSvc,
		audit:    auditSvc,
	}
}

// Middleware returns the pipeline as chi middleware for protected routes.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		credType := p.resolver.Classify(r)

		principal, sess, err := p.authenticate(r, credType)
		if err != nil {
			p.reject(w, r, credType, err)
			return
		}

		// Browser traffic is throttled at login; programmatic traffic is
		// throttled here, per key identity.
		if principal.AuthMethod() != domain.AuthMethodSession {
			if err := p.limiter.Consume(PolicyAPIKeyUsage, principal.IdentityKey()); err != nil {
				p.reject(w, r, credType, err)
				return
			}
		}

		if principal.AuthMethod() == domain.AuthMethodSession && stateChanging(r.Method) {
			token := r.Header.Get(resolver.HeaderCSRFToken)
			if err := p.csrf.Validate(token, sess.ID); err != nil {
				p.reject(w, r, credType, err)
				return
			}
		}

		p.audit.Record(r.Context(), domain.AuditEventAuthSuccess, domain.AuditLevelInfo, map[string]string{
			"method":    string(principal.AuthMethod()),
			"identity":  principal.IdentityKey(),
			"path":      r.URL.Path,
			"source_ip": httputil.ClientIP(r),
		})
		metrics.DefaultMetrics.AuthAttemptsTotal.WithLabelValues(string(credType), "success").Inc()
		metrics.DefaultMetrics.AuthDurationSeconds.WithLabelValues(string(credType)).Observe(time.Since(start).Seconds())

		ctx := domain.WithPrincipal(r.Context(), principal)
		if sess != nil {
			ctx = domain.WithSession(ctx, sess)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate runs the stage matching the classified credential.
func (p *Pipeline) authenticate(r *http.Request, credType resolver.CredentialType) (*domain.Principal, *domain.Session, error) {
	ctx := r.Context()
	switch credType {
	case resolver.CredentialSession:
		return p.sessions.Authenticate(ctx, p.resolver.SessionTokenFrom(r))

	case resolver.CredentialAPIKey:
		principal, err := p.apiKeys.Authenticate(ctx, resolver.APIKeyFrom(r))
		return principal, nil, err

	case resolver.CredentialSignedRequest:
		principal, err := p.authenticateSigned(r)
		return principal, nil, err

	default:
		return nil, nil, errors.NewAuthError(errors.CodeMissingCredential, "authentication required", errors.ErrMissingCredential)
	}
}

// authenticateSigned verifies a signed request. The key is resolved first so
// signature work only happens for keys that exist and are active; the body
// is buffered and restored for the downstream handler.
func (p *Pipeline) authenticateSigned(r *http.Request) (*domain.Principal, error) {
	ctx := r.Context()

	record, err := p.apiKeys.Lookup(ctx, resolver.APIKeyFrom(r))
	if err != nil {
		return nil, err
	}

	sr, err := signature.ParseSignedRequest(r)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
	if err != nil {
		return nil, errors.NewAuthError(errors.CodeMalformedInput, "unreadable request body", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if err := p.verifier.Verify(ctx, record.KeyValue, sr, body); err != nil {
		return nil, err
	}

	p.apiKeys.RecordUsage(record.ID)
	return domain.NewPrincipal(record.OwnerUserID, record.ID, record.Permissions, domain.AuthMethodSignedRequest), nil
}

// reject audits the failure and writes the rejection envelope.
func (p *Pipeline) reject(w http.ResponseWriter, r *http.Request, credType resolver.CredentialType, err error) {
	eventType, level := classifyFailure(err)
	details := map[string]string{
		"credential_type": string(credType),
		"path":            r.URL.Path,
		"source_ip":       httputil.ClientIP(r),
	}
	var authErr *errors.AuthError
	if errors.As(err, &authErr) {
		details["code"] = authErr.Code
	}
	p.audit.Record(r.Context(), eventType, level, details)

	metrics.DefaultMetrics.AuthAttemptsTotal.WithLabelValues(string(credType), "failure").Inc()
	httputil.WriteError(w, err)
}

// classifyFailure maps a pipeline error to its audit event type and severity.
func classifyFailure(err error) (domain.AuditEventType, domain.AuditLevel) {
	switch {
	case errors.Is(err, errors.ErrReplayDetected):
		return domain.AuditEventReplayDetected, domain.AuditLevelWarning
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return domain.AuditEventRateLimited, domain.AuditLevelWarning
	case errors.Is(err, errors.ErrCSRFTokenInvalid):
		return domain.AuditEventCSRFRejected, domain.AuditLevelWarning
	case errors.Is(err, errors.ErrPermissionDenied):
		return domain.AuditEventPermissionDenied, domain.AuditLevelWarning
	case errors.Is(err, errors.ErrStoreUnavailable):
		return domain.AuditEventStoreFailure, domain.AuditLevelCritical
	default:
		return domain.AuditEventAuthFailure, domain.AuditLevelWarning
	}
}

// stateChanging reports whether the HTTP method mutates state.
func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequirePermission returns middleware enforcing a permission on the
// authenticated principal. Must run after the pipeline middleware.
func (p *Pipeline) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := domain.PrincipalFrom(r.Context())
			if !ok {
				httputil.WriteError(w, errors.NewAuthError(errors.CodeMissingCredential, "authentication required", errors.ErrMissingCredential))
				return
			}
			if !principal.HasPermission(perm) {
				p.audit.Record(r.Context(), domain.AuditEventPermissionDenied, domain.AuditLevelWarning, map[string]string{
					"identity":   principal.IdentityKey(),
					"permission": perm,
					"path":       r.URL.Path,
				})
				httputil.WriteError(w, errors.NewAuthError(errors.CodePermissionDenied, "permission denied", errors.ErrPermissionDenied))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
