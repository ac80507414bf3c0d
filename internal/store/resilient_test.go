package store

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	gwerrors "github.com/your-org/auth-gateway/pkg/errors"
)

func storeConfig() config.StoreConfig {
	return config.StoreConfig{
		Timeout: 100 * time.Millisecond,
		Breaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 3,
		},
	}
}

// slowStore blocks until the context is cancelled.
type slowStore struct {
	*MemoryStore
}

func (s *slowStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResilient_PassesThroughResults(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutSession(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})

	r := NewResilient(mem, storeConfig())

	sess, err := r.GetSessionByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
}

func TestResilient_NotFoundPassesThrough(t *testing.T) {
	r := NewResilient(NewMemoryStore(), storeConfig())

	_, err := r.GetSessionByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = r.GetAPIKeyByValue(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestResilient_CountsStoreCalls(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutSession(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	r := NewResilient(mem, storeConfig())

	success := metrics.DefaultMetrics.StoreCallsTotal.WithLabelValues("get_session", "success")
	notFound := metrics.DefaultMetrics.StoreCallsTotal.WithLabelValues("get_session", "not_found")
	successBefore := testutil.ToFloat64(success)
	notFoundBefore := testutil.ToFloat64(notFound)

	_, err := r.GetSessionByID(context.Background(), "s1")
	require.NoError(t, err)
	_, err = r.GetSessionByID(context.Background(), "missing")
	require.Error(t, err)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(success))
	assert.Equal(t, notFoundBefore+1, testutil.ToFloat64(notFound))
}

func TestResilient_TimeoutFailsClosed(t *testing.T) {
	r := NewResilient(&slowStore{NewMemoryStore()}, storeConfig())

	start := time.Now()
	_, err := r.GetSessionByID(context.Background(), "s1")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, gwerrors.ErrStoreUnavailable)
	assert.Less(t, elapsed, time.Second)
}

func TestResilient_NotFoundDoesNotTripBreaker(t *testing.T) {
	r := NewResilient(NewMemoryStore(), storeConfig())

	// Far more not-founds than the failure threshold.
	for i := 0; i < 20; i++ {
		_, err := r.GetSessionByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}

	// A real lookup still works: the breaker never opened.
	mem := NewMemoryStore()
	mem.PutSession(&domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	r2 := NewResilient(mem, storeConfig())
	_, err := r2.GetSessionByID(context.Background(), "s1")
	assert.NoError(t, err)
}

func TestResilient_BreakerOpensAfterConsecutiveTimeouts(t *testing.T) {
	r := NewResilient(&slowStore{NewMemoryStore()}, storeConfig())

	for i := 0; i < 3; i++ {
		_, err := r.GetSessionByID(context.Background(), "s1")
		require.Error(t, err)
	}

	// Breaker is open now; the call fails fast without waiting the timeout.
	start := time.Now()
	_, err := r.GetSessionByID(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gwerrors.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryStore_RevocationIsPermanent(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutAPIKey(&domain.APIKeyRecord{ID: "k1", KeyValue: "ak_live_abc", IsActive: true})

	require.True(t, mem.RevokeAPIKey("ak_live_abc"))

	rec, err := mem.GetAPIKeyByValue(context.Background(), "ak_live_abc")
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
	assert.NotNil(t, rec.RevokedAt)
}

func TestMemoryStore_IncrementUsage(t *testing.T) {
	mem := NewMemoryStore()
	mem.PutAPIKey(&domain.APIKeyRecord{ID: "k1", KeyValue: "ak_live_abc", IsActive: true})

	require.NoError(t, mem.IncrementUsage(context.Background(), "k1", 3))
	rec, err := mem.GetAPIKeyByValue(context.Background(), "ak_live_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.UsageCount)
	assert.False(t, rec.LastUsedAt.IsZero())
}
