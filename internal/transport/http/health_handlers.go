package http

import (
	"net/http"
	"time"

	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/httputil"
	"github.com/your-org/auth-gateway/pkg/resilience/circuitbreaker"
)

// HealthHandler reports process health and readiness.
type HealthHandler struct {
	version   string
	resilient *store.Resilient
}

// NewHealthHandler creates the health handler. resilient may be nil when the
// store wrapper is disabled.
func NewHealthHandler(version string, resilient *store.Resilient) *HealthHandler {
	return &HealthHandler{version: version, resilient: resilient}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}

// Live handles GET /live. Always succeeds while the process can serve.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Ready handles GET /ready. Not ready while the store breaker is open:
// authentication would fail closed for every request.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]CheckResult)
	status := "ready"
	code := http.StatusOK

	if h.resilient != nil {
		if state := h.resilient.BreakerState(); state == circuitbreaker.StateOpen {
			checks["store"] = CheckResult{Status: "unhealthy", Message: "circuit breaker open"}
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = CheckResult{Status: "healthy"}
		}
	}

	httputil.WriteJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}
