package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/service/apikey"
	"github.com/your-org/auth-gateway/internal/service/audit"
	"github.com/your-org/auth-gateway/internal/service/ratelimit"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/httputil"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// AdminHandler holds the operator-facing handlers. All routes require the
// admin permission on the authenticated principal.
type AdminHandler struct {
	cfg     *config.Config
	apiKeys *apikey.Authenticator
	limiter *ratelimit.Limiter
	audit   *audit.Service
}

// NewAdminHandler creates the admin-surface handler.
func NewAdminHandler(cfg *config.Config, apiKeys *apikey.Authenticator, limiter *ratelimit.Limiter, auditSvc *audit.Service) *AdminHandler {
	return &AdminHandler{
		cfg:     cfg,
		apiKeys: apiKeys,
		limiter: limiter,
		audit:   auditSvc,
	}
}

// RecentAuditEvents handles GET /admin/audit/recent.
func (h *AdminHandler) RecentAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, errors.NewAuthError(errors.CodeMalformedInput, "limit must be a positive integer", err))
			return
		}
		limit = n
	}
	httputil.WriteJSON(w, http.StatusOK, h.audit.Recent(limit))
}

// VerifyAuditChain handles GET /admin/audit/verify.
func (h *AdminHandler) VerifyAuditChain(w http.ResponseWriter, r *http.Request) {
	report := h.audit.VerifyChain()
	status := http.StatusOK
	if !report.OK {
		logger.Error("audit chain verification failed",
			logger.Int("broken_at", report.BrokenAt),
			logger.String("broken_id", report.BrokenID),
		)
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, report)
}

// ConfigDump handles GET /admin/config. Secrets are redacted before the
// dump leaves the process.
func (h *AdminHandler) ConfigDump(w http.ResponseWriter, r *http.Request) {
	redacted := *h.cfg
	if redacted.Session.SigningSecret != "" {
		redacted.Session.SigningSecret = logger.MaskValue
	}
	if redacted.EdgeLimit.Redis.Password != "" {
		redacted.EdgeLimit.Redis.Password = logger.MaskValue
	}

	out, err := yaml.Marshal(redacted)
	if err != nil {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeInternalError, "internal error", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// InvalidateKeyCache handles POST /admin/keys/invalidate. Used after an
// out-of-band revocation so the key stops validating immediately instead of
// after the cache TTL.
func (h *AdminHandler) InvalidateKeyCache(w http.ResponseWriter, r *http.Request) {
	var req InvalidateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		httputil.WriteError(w, errors.NewAuthError(errors.CodeMalformedInput, "key is required", err))
		return
	}
	h.apiKeys.Invalidate(req.Key)
	logger.Info("api key cache invalidated", logger.String("key", logger.MaskKey(req.Key)))
	w.WriteHeader(http.StatusNoContent)
}

// KeyCacheStats handles GET /admin/keys/cache.
func (h *AdminHandler) KeyCacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.apiKeys.CacheStats())
}

// RateLimitPolicies handles GET /admin/ratelimit/policies.
func (h *AdminHandler) RateLimitPolicies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.limiter.Policies())
}
