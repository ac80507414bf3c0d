package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/auth-gateway/internal/config"
)

func memoryConfig(rate string) config.EdgeLimitConfig {
	return config.EdgeLimitConfig{
		Enabled: true,
		Rate:    rate,
		Store:   "memory",
		Headers: config.EdgeHeadersConfig{
			Enabled:         true,
			LimitHeader:     "X-RateLimit-Limit",
			RemainingHeader: "X-RateLimit-Remaining",
			ResetHeader:     "X-RateLimit-Reset",
		},
	}
}

func TestNewLimiter(t *testing.T) {
	l, err := NewLimiter(memoryConfig("100-S"))
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestNewLimiter_BadRate(t *testing.T) {
	_, err := NewLimiter(memoryConfig("not-a-rate"))
	require.Error(t, err)
}

func TestMiddleware_AllowsUnderLimit(t *testing.T) {
	l, err := NewLimiter(memoryConfig("100-S"))
	require.NoError(t, err)

	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	l, err := NewLimiter(memoryConfig("2-H"))
	require.NoError(t, err)

	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/v1/payments", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMiddleware_ExcludedPath(t *testing.T) {
	cfg := memoryConfig("1-H")
	cfg.ExcludePaths = []string{"/health"}
	l, err := NewLimiter(cfg)
	require.NoError(t, err)

	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestGetClientKey_ForwardedFor(t *testing.T) {
	cfg := memoryConfig("10-S")
	cfg.TrustForwardedFor = true
	l, err := NewLimiter(cfg)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", l.getClientKey(req))

	// Untrusted by default.
	l2, err := NewLimiter(memoryConfig("10-S"))
	require.NoError(t, err)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", l2.getClientKey(req))
}
