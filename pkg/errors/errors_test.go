package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AuthError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewAuthError(CodeInvalidCredential, "credential rejected", nil),
			expected: "INVALID_CREDENTIAL: credential rejected",
		},
		{
			name:     "with cause",
			err:      NewAuthError(CodeReplayDetected, "nonce reused", ErrReplayDetected),
			expected: "REPLAY_DETECTED: nonce reused: request nonce has already been consumed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAuthError_Unwrap(t *testing.T) {
	err := NewAuthError(CodeSessionExpired, "session gone", ErrSessionExpired)

	require.True(t, Is(err, ErrSessionExpired))
	assert.False(t, Is(err, ErrInvalidToken))
}

func TestAuthError_As(t *testing.T) {
	var target *AuthError

	wrapped := fmt.Errorf("pipeline stage: %w",
		NewAuthError(CodeRateLimited, "too many requests", ErrRateLimitExceeded).WithRetryAfter(30))

	require.True(t, As(wrapped, &target))
	assert.Equal(t, CodeRateLimited, target.Code)
	assert.Equal(t, 30, target.RetryAfterSeconds)
}

func TestAuthError_WithDetail(t *testing.T) {
	err := NewAuthError(CodeReplayDetected, "nonce reused", nil).
		WithDetail("nonce", "abc-123")

	assert.Equal(t, "abc-123", err.Details["nonce"])
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	wrapped := Wrap(ErrStoreUnavailable, "session lookup")
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, ErrStoreUnavailable))
	assert.Contains(t, wrapped.Error(), "session lookup")
}
