// Package http exposes the gateway over HTTP: the login surface, the
// protected demo endpoints, health, metrics, and the admin surface.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/audit"
	"github.com/your-org/auth-gateway/internal/service/csrf"
	"github.com/your-org/auth-gateway/internal/service/ratelimit"
	"github.com/your-org/auth-gateway/internal/service/session"
	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/httputil"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// PolicyLogin throttles credential-guessing attempts per client address.
const PolicyLogin = "login"

// Handler holds the HTTP handlers for the public surface.
type Handler struct {
	cfg      *config.Config
	store    store.Store
	sessions *session.Authenticator
	limiter  *ratelimit.Limiter
	csrf     *csrf.Service
	audit    *audit.Service
	version  string
}

// NewHandler creates the public-surface handler.
func NewHandler(
	cfg *config.Config,
	st store.Store,
	sessions *session.Authenticator,
	limiter *ratelimit.Limiter,
	csrfSvc *csrf.Service,
	auditSvc *audit.Service,
	version string,
) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		limiter:  limiter,
		csrf:     csrfSvc,
		audit:    auditSvc,
		version:  version,
	}
}

// Login handles POST /v1/auth/login. Attempts are limited per client address
// before credentials are checked, so a guessing run is throttled whether or
// not the account exists. The failure response is identical for unknown
// email and wrong password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeMalformedInput, "email and password are required", err))
		return
	}

	ip := httputil.ClientIP(r)
	if err := h.limiter.Consume(PolicyLogin, ip); err != nil {
		h.audit.Record(r.Context(), domain.AuditEventRateLimited, domain.AuditLevelWarning, map[string]string{
			"policy":    PolicyLogin,
			"source_ip": ip,
		})
		httputil.WriteError(w, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			h.loginFailed(w, r, ip)
			return
		}
		httputil.WriteError(w, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.loginFailed(w, r, ip)
		return
	}

	now := time.Now()
	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(h.cfg.Session.TokenTTL),
	}
	if err := h.store.CreateSession(r.Context(), sess); err != nil {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeStoreUnavailable, "authentication unavailable", err))
		return
	}

	token, err := h.sessions.IssueToken(sess.ID, sess.ExpiresAt)
	if err != nil {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeInternalError, "internal error", err))
		return
	}
	http.SetCookie(w, h.sessionCookie(token, sess.ExpiresAt))

	h.audit.Record(r.Context(), domain.AuditEventAuthSuccess, domain.AuditLevelInfo, map[string]string{
		"method":    "login",
		"identity":  user.ID,
		"source_ip": ip,
	})
	logger.Info("login succeeded", logger.String("user_id", user.ID))

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		UserID:    user.ID,
		ExpiresAt: sess.ExpiresAt,
	})
}

// loginFailed writes the uniform invalid-credential response.
func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, ip string) {
	h.audit.Record(r.Context(), domain.AuditEventAuthFailure, domain.AuditLevelWarning, map[string]string{
		"method":    "login",
		"source_ip": ip,
	})
	httputil.WriteError(w, errors.NewAuthError(errors.CodeInvalidCredential, "invalid credential", errors.ErrInvalidToken))
}

// Logout handles POST /v1/auth/logout on the protected surface. The session
// record is removed and the cookie expired.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := domain.SessionFrom(r.Context())
	if !ok {
		httputil.WriteError(w, errors.NewAuthError(errors.CodePermissionDenied, "session authentication required", errors.ErrPermissionDenied))
		return
	}
	if err := h.store.DeleteSession(r.Context(), sess.ID); err != nil {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeStoreUnavailable, "logout unavailable", err))
		return
	}
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

// CSRFToken handles GET /v1/csrf on the protected surface. Tokens are bound
// to the authenticated session, so only cookie-authenticated requests can
// obtain one.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := domain.SessionFrom(r.Context())
	if !ok {
		httputil.WriteError(w, errors.NewAuthError(errors.CodePermissionDenied, "session authentication required", errors.ErrPermissionDenied))
		return
	}
	token, err := h.csrf.Issue(sess.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Also delivered as a cookie so browser clients can use double-submit;
	// validation itself is server-side against the issued token.
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRF.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.cfg.CSRF.TokenTTL),
		HttpOnly: true,
		Secure:   h.cfg.Env.Production(),
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, CSRFResponse{
		Token:     token,
		ExpiresIn: int(h.cfg.CSRF.TokenTTL.Seconds()),
	})
}

// AuthorizePayment handles POST /v1/payments/authorize. The pipeline has
// already authenticated the request and enforced rate limits and CSRF; this
// handler represents the protected business operation.
func (h *Handler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := domain.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeMissingCredential, "authentication required", errors.ErrMissingCredential))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuthorizeResponse{
		Status:   "authorized",
		Identity: principal.IdentityKey(),
		Method:   string(principal.AuthMethod()),
	})
}

// sessionCookie builds the session cookie. Secure is set in production.
// SameSite is Strict: the session cookie must never ride along on
// cross-site navigation.
func (h *Handler) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.Env.Production(),
		SameSite: http.SameSiteStrictMode,
	}
}
