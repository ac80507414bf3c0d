package http

import "time"

// LoginRequest is the credential payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse confirms a successful login. The session token itself
// travels only in the HttpOnly cookie.
type LoginResponse struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CSRFResponse carries a freshly issued CSRF token.
type CSRFResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// AuthorizeResponse is the demo payment-authorization result.
type AuthorizeResponse struct {
	Status   string `json:"status"`
	Identity string `json:"identity"`
	Method   string `json:"method"`
}

// HealthResponse is the health/readiness payload.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one named readiness check.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// InvalidateKeyRequest names the key value to drop from the validation
// cache.
type InvalidateKeyRequest struct {
	Key string `json:"key"`
}
