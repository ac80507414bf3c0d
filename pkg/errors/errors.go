package errors

import (
	"errors"
	"fmt"
)

// Standard error types for the authentication gateway.
var (
	// Credential errors
	ErrMissingCredential   = errors.New("credential is missing")
	ErrInvalidToken        = errors.New("session token is invalid")
	ErrSessionExpired      = errors.New("session has expired")
	ErrUserNotFound        = errors.New("user record not found")
	ErrMalformedKey        = errors.New("API key is malformed")
	ErrInvalidOrRevokedKey = errors.New("API key is invalid or revoked")

	// Signed-request errors
	ErrMissingSignatureHeaders = errors.New("signature headers are missing")
	ErrTimestampOutOfWindow    = errors.New("request timestamp is outside the accepted window")
	ErrReplayDetected          = errors.New("request nonce has already been consumed")
	ErrInvalidSignature        = errors.New("request signature is invalid")

	// Abuse-prevention errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrCSRFTokenInvalid  = errors.New("CSRF token is invalid")
	ErrPermissionDenied  = errors.New("permission denied")

	// Service errors
	ErrStoreUnavailable = errors.New("persistence store unavailable")
	ErrTimeout          = errors.New("operation timeout")
	ErrInternal         = errors.New("internal error")
)

// AuthError represents a structured authentication/authorization error.
type AuthError struct {
	// Code is the stable error code returned to clients
	Code string `json:"code"`

	// Message is the client-safe error message
	Message string `json:"message"`

	// RetryAfterSeconds is set for rate-limit errors
	RetryAfterSeconds int `json:"retry_after,omitempty"`

	// Details contains additional error details (never sent to clients)
	Details map[string]any `json:"-"`

	// Cause is the underlying error
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *AuthError) WithDetail(key string, value any) *AuthError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter sets the retry-after hint in seconds.
func (e *AuthError) WithRetryAfter(seconds int) *AuthError {
	e.RetryAfterSeconds = seconds
	return e
}

// NewAuthError creates a new AuthError.
func NewAuthError(code, message string, cause error) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error codes. These are part of the client-visible contract: each code maps
// to exactly one HTTP status, and messages never disclose whether a specific
// identifier exists.
const (
	CodeMalformedInput    = "MALFORMED_INPUT"     // 400
	CodeMissingCredential = "MISSING_CREDENTIAL"  // 401
	CodeInvalidCredential = "INVALID_CREDENTIAL"  // 401
	CodeSessionExpired    = "SESSION_EXPIRED"     // 401
	CodeReplayDetected    = "REPLAY_DETECTED"     // 401
	CodeInvalidSignature  = "INVALID_SIGNATURE"   // 401
	CodeTimestampSkew     = "TIMESTAMP_SKEW"      // 401
	CodeCSRFInvalid       = "CSRF_INVALID"        // 403
	CodePermissionDenied  = "PERMISSION_DENIED"   // 403
	CodeRateLimited       = "RATE_LIMITED"        // 429
	CodeInternalError     = "INTERNAL_ERROR"      // 500
	CodeStoreUnavailable  = "SERVICE_UNAVAILABLE" // 500
)

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
