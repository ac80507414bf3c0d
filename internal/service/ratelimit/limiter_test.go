package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/pkg/errors"
)

func testPolicies() map[string]config.PolicyConfig {
	return map[string]config.PolicyConfig{
		"login": {
			MaxPoints:     5,
			Window:        15 * time.Minute,
			BlockDuration: 15 * time.Minute,
		},
		"apiKeyUsage": {
			MaxPoints:     1000,
			Window:        time.Minute,
			BlockDuration: time.Minute,
		},
	}
}

// atTime pins the limiter clock so window arithmetic is deterministic.
func atTime(l *Limiter, t time.Time) {
	l.now = func() time.Time { return t }
}

func TestConsume_SixthAttemptRejected(t *testing.T) {
	l := NewLimiter(testPolicies())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"), "attempt %d", i+1)
	}

	err := l.Consume("login", "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))

	var authErr *errors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, errors.CodeRateLimited, authErr.Code)
	assert.Equal(t, 900, authErr.RetryAfterSeconds)
}

func TestConsume_IdentitiesIsolated(t *testing.T) {
	l := NewLimiter(testPolicies())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"))
	}
	require.Error(t, l.Consume("login", "u1"))

	// A different identity under the same policy is unaffected.
	require.NoError(t, l.Consume("login", "u2"))
}

func TestConsume_PoliciesIsolated(t *testing.T) {
	l := NewLimiter(testPolicies())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"))
	}
	require.Error(t, l.Consume("login", "u1"))

	// The same identity under another policy keeps its own counter.
	require.NoError(t, l.Consume("apiKeyUsage", "u1"))
}

func TestConsume_BlockExpiresThenWindowResets(t *testing.T) {
	l := NewLimiter(testPolicies())
	start := time.Now()
	atTime(l, start)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"))
	}
	require.Error(t, l.Consume("login", "u1"))

	// Still blocked halfway through.
	atTime(l, start.Add(7*time.Minute))
	require.Error(t, l.Consume("login", "u1"))

	// After the block and the window have passed, a full allowance returns.
	atTime(l, start.Add(16*time.Minute))
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"), "attempt %d after reset", i+1)
	}
	require.Error(t, l.Consume("login", "u1"))
}

func TestConsume_BlockedRetryAfterShrinks(t *testing.T) {
	l := NewLimiter(testPolicies())
	start := time.Now()
	atTime(l, start)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"))
	}
	require.Error(t, l.Consume("login", "u1"))

	atTime(l, start.Add(14*time.Minute))
	err := l.Consume("login", "u1")
	require.Error(t, err)

	var authErr *errors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.LessOrEqual(t, authErr.RetryAfterSeconds, 60)
	assert.Greater(t, authErr.RetryAfterSeconds, 0)
}

func TestConsume_UnknownPolicyFailsClosed(t *testing.T) {
	l := NewLimiter(testPolicies())

	err := l.Consume("nope", "u1")
	require.Error(t, err)

	var authErr *errors.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, errors.CodeInternalError, authErr.Code)
}

func TestConsume_ConcurrentNeverOverAdmits(t *testing.T) {
	l := NewLimiter(map[string]config.PolicyConfig{
		"burst": {MaxPoints: 50, Window: time.Minute, BlockDuration: time.Minute},
	})

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Consume("burst", "u1") == nil {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), allowed)
}

func TestRemaining(t *testing.T) {
	l := NewLimiter(testPolicies())

	assert.Equal(t, 5, l.Remaining("login", "u1"))
	require.NoError(t, l.Consume("login", "u1"))
	assert.Equal(t, 4, l.Remaining("login", "u1"))
}

func TestUpdatePolicies_HotReload(t *testing.T) {
	l := NewLimiter(testPolicies())

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Consume("login", "u1"))
	}
	require.Error(t, l.Consume("login", "u1"))

	l.UpdatePolicies(map[string]config.PolicyConfig{
		"login": {MaxPoints: 10, Window: 15 * time.Minute, BlockDuration: 15 * time.Minute},
	})

	// A fresh identity sees the new allowance.
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Consume("login", "u3"), "attempt %d", i+1)
	}
	require.Error(t, l.Consume("login", "u3"))
}

func TestSweep_RemovesStaleEntries(t *testing.T) {
	l := NewLimiter(testPolicies())
	start := time.Now()
	atTime(l, start)

	require.NoError(t, l.Consume("login", "u1"))
	require.NoError(t, l.Consume("apiKeyUsage", "k1"))

	atTime(l, start.Add(time.Hour))
	l.sweep()

	total := 0
	for i := range l.shards {
		total += len(l.shards[i].entries)
	}
	assert.Zero(t, total)
}
