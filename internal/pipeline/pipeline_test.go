package pipeline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/apikey"
	"github.com/your-org/auth-gateway/internal/service/audit"
	"github.com/your-org/auth-gateway/internal/service/csrf"
	"github.com/your-org/auth-gateway/internal/service/ratelimit"
	"github.com/your-org/auth-gateway/internal/service/resolver"
	"github.com/your-org/auth-gateway/internal/service/session"
	"github.com/your-org/auth-gateway/internal/service/signature"
	"github.com/your-org/auth-gateway/internal/store"
)

const (
	testCookie = "gw_session"
	testKey    = "ak_live_pipeline0000"
	testSecret = "pipeline-secret"
)

type fixture struct {
	pipeline *Pipeline
	store    *store.MemoryStore
	sessions *session.Authenticator
	csrf     *csrf.Service
	audit    *audit.Service
	handler  http.Handler
}

func newFixture(t *testing.T, apiKeyPoints int) *fixture {
	t.Helper()

	mem := store.NewMemoryStore()
	mem.PutUser(&domain.User{ID: "u1", Email: "a@example.com", Permissions: []string{"payments:authorize"}})
	mem.PutSession(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	mem.PutAPIKey(&domain.APIKeyRecord{
		ID:               "k1",
		OwnerUserID:      "u1",
		KeyValue:         testKey,
		SecretForSigning: testSecret,
		Permissions:      []string{"payments:authorize"},
		IsActive:         true,
	})

	sessions := session.NewAuthenticator(config.SessionConfig{
		CookieName:    testCookie,
		SigningSecret: "test-secret",
		TokenTTL:      time.Hour,
	}, mem, mem)

	apiKeys := apikey.NewAuthenticator(config.APIKeyConfig{
		LivePrefix: "ak_live",
		TestPrefix: "ak_test",
		Cache:      config.APIKeyCacheConfig{Enabled: true, MaxSize: 100, TTL: time.Minute},
	}, mem, apikey.NewUsageRecorder(mem, time.Hour))

	verifier := signature.NewVerifier(config.SignatureConfig{Window: 5 * time.Minute}, mem, signature.NewNonceStore())

	limiter := ratelimit.NewLimiter(map[string]config.PolicyConfig{
		PolicyAPIKeyUsage: {MaxPoints: apiKeyPoints, Window: time.Minute, BlockDuration: time.Minute},
	})

	csrfSvc := csrf.NewService(config.CSRFConfig{TokenTTL: time.Hour})

	auditSvc, err := audit.NewService(config.AuditConfig{Enabled: true, RingSize: 100})
	require.NoError(t, err)

	p := New(resolver.New(testCookie), sessions, apiKeys, verifier, limiter, csrfSvc, auditSvc)

	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := domain.PrincipalFrom(r.Context())
		require.True(t, ok)
		w.Header().Set("X-Identity", principal.IdentityKey())
		w.WriteHeader(http.StatusOK)
	}))

	return &fixture{
		pipeline: p,
		store:    mem,
		sessions: sessions,
		csrf:     csrfSvc,
		audit:    auditSvc,
		handler:  handler,
	}
}

func (f *fixture) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := f.sessions.IssueToken("s1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: token}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPipeline_NoCredential(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "MISSING_CREDENTIAL", body["code"])

	events := f.audit.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AuditEventAuthFailure, events[0].EventType)
}

func TestPipeline_SessionGet(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	req.AddCookie(f.sessionCookie(t))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Header().Get("X-Identity"))

	events := f.audit.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AuditEventAuthSuccess, events[0].EventType)
}

func TestPipeline_SessionPostRequiresCSRF(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("POST", "/v1/payments", nil)
	req.AddCookie(f.sessionCookie(t))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "CSRF_INVALID", body["code"])

	events := f.audit.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, domain.AuditEventCSRFRejected, events[0].EventType)
}

func TestPipeline_SessionPostWithCSRF(t *testing.T) {
	f := newFixture(t, 100)

	token, err := f.csrf.Issue("s1")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/payments", nil)
	req.AddCookie(f.sessionCookie(t))
	req.Header.Set(resolver.HeaderCSRFToken, token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Single use: replaying the token fails.
	req2 := httptest.NewRequest("POST", "/v1/payments", nil)
	req2.AddCookie(f.sessionCookie(t))
	req2.Header.Set(resolver.HeaderCSRFToken, token)
	rec2 := httptest.NewRecorder()
	f.handler.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusForbidden, rec2.Code)
}

func TestPipeline_SessionGetSkipsCSRF(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	req.AddCookie(f.sessionCookie(t))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPipeline_APIKeyBearer(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("POST", "/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k1", rec.Header().Get("X-Identity"))
}

func TestPipeline_APIKeyNoCSRFRequired(t *testing.T) {
	f := newFixture(t, 100)

	// State-changing API key requests do not need CSRF tokens.
	req := httptest.NewRequest("DELETE", "/v1/payments/p1", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPipeline_InvalidAPIKey(t *testing.T) {
	f := newFixture(t, 100)

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	req.Header.Set("X-API-Key", "ak_live_unknown")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_CREDENTIAL", body["code"])
}

func TestPipeline_PartialSignatureHeadersRejected(t *testing.T) {
	f := newFixture(t, 100)

	// A valid key with an incomplete signature header set must not
	// downgrade to plain key authentication.
	req := httptest.NewRequest("POST", "/v1/payments/authorize", nil)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("x-signature", "deadbeef")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_SIGNATURE", envelope["code"])
}

func TestPipeline_APIKeyRateLimited(t *testing.T) {
	f := newFixture(t, 3)

	status := func() int {
		req := httptest.NewRequest("GET", "/v1/payments", nil)
		req.Header.Set("X-API-Key", testKey)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, status())
	}

	req := httptest.NewRequest("GET", "/v1/payments", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Greater(t, body["retryAfter"], float64(0))

	events := f.audit.Recent(0)
	last := events[len(events)-1]
	assert.Equal(t, domain.AuditEventRateLimited, last.EventType)
}

func signedReq(t *testing.T, method, path string, nonce string, body []byte) *http.Request {
	t.Helper()
	millis := time.Now().UnixMilli()
	canonical := signature.CanonicalString(method, path, millis, nonce, body)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set(resolver.HeaderSignature, signature.Sign(testSecret, canonical))
	req.Header.Set(resolver.HeaderTimestamp, strconv.FormatInt(millis, 10))
	req.Header.Set(resolver.HeaderNonce, nonce)
	return req
}

func TestPipeline_SignedRequest(t *testing.T) {
	f := newFixture(t, 100)
	body := []byte(`{"amount":100}`)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, signedReq(t, "POST", "/v1/payments/authorize", "n1", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k1", rec.Header().Get("X-Identity"))
}

func TestPipeline_SignedRequestBodyRestored(t *testing.T) {
	f := newFixture(t, 100)
	payload := []byte(`{"amount":100}`)

	var seen []byte
	handler := f.pipeline.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(r.Body)
		require.NoError(t, err)
		seen = buf.Bytes()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedReq(t, "POST", "/v1/payments/authorize", "n-body", payload))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, seen)
}

func TestPipeline_SignedRequestReplay(t *testing.T) {
	f := newFixture(t, 100)
	body := []byte(`{"amount":100}`)

	req := signedReq(t, "POST", "/v1/payments/authorize", "n1", body)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same headers and body again.
	replay := httptest.NewRequest("POST", "/v1/payments/authorize", bytes.NewReader(body))
	replay.Header = req.Header.Clone()
	rec2 := httptest.NewRecorder()
	f.handler.ServeHTTP(rec2, replay)

	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	envelope := decodeEnvelope(t, rec2)
	assert.Equal(t, "REPLAY_DETECTED", envelope["code"])

	events := f.audit.Recent(0)
	last := events[len(events)-1]
	assert.Equal(t, domain.AuditEventReplayDetected, last.EventType)
}

func TestPipeline_SignedRequestTamperedBody(t *testing.T) {
	f := newFixture(t, 100)

	req := signedReq(t, "POST", "/v1/payments/authorize", "n1", []byte(`{"amount":100}`))
	tampered := httptest.NewRequest("POST", "/v1/payments/authorize", bytes.NewReader([]byte(`{"amount":9999}`)))
	tampered.Header = req.Header.Clone()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, tampered)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_SIGNATURE", body["code"])
}

func TestPipeline_RequirePermission(t *testing.T) {
	f := newFixture(t, 100)

	protected := f.pipeline.Middleware(
		f.pipeline.RequirePermission("admin:write")(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

	req := httptest.NewRequest("GET", "/admin/keys", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "PERMISSION_DENIED", body["code"])
}

func TestPipeline_AuditChainStaysValid(t *testing.T) {
	f := newFixture(t, 100)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/v1/payments", nil)
		if i%2 == 0 {
			req.Header.Set("X-API-Key", testKey)
		}
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
	}

	report := f.audit.VerifyChain()
	assert.True(t, report.OK)
	assert.Equal(t, 5, report.Checked)
}
