// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// RejectionBody is the envelope every rejected request receives. The message
// never discloses whether a specific user, key, or session exists.
type RejectionBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// HTTPStatus maps a stable error code to its HTTP status. Unknown codes are
// treated as internal failures.
func HTTPStatus(code string) int {
	switch code {
	case errors.CodeMalformedInput:
		return http.StatusBadRequest
	case errors.CodeMissingCredential,
		errors.CodeInvalidCredential,
		errors.CodeSessionExpired,
		errors.CodeReplayDetected,
		errors.CodeInvalidSignature,
		errors.CodeTimestampSkew:
		return http.StatusUnauthorized
	case errors.CodeCSRFInvalid, errors.CodePermissionDenied:
		return http.StatusForbidden
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the rejection envelope for err. Internal detail stays in
// the log; the client sees only the stable code and a generic message.
func WriteError(w http.ResponseWriter, err error) {
	var authErr *errors.AuthError
	if !errors.As(err, &authErr) {
		authErr = errors.NewAuthError(errors.CodeInternalError, "internal error", err)
	}

	status := HTTPStatus(authErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logger.String("code", authErr.Code), logger.Err(err))
	}

	body := RejectionBody{
		Error:      authErr.Message,
		Code:       authErr.Code,
		RetryAfter: authErr.RetryAfterSeconds,
	}
	if authErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(authErr.RetryAfterSeconds))
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", logger.Err(err))
	}
}
