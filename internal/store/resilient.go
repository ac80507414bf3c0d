package store

import (
	"context"
	"errors"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	gwerrors "github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/resilience/circuitbreaker"
)

// breakerName identifies the persistence collaborator to the breaker manager.
const breakerName = "store"

// IsNotFound reports whether err is an ordinary not-found outcome. These are
// credential failures, not availability failures, and never trip the breaker.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrKeyNotFound)
}

// Resilient wraps a Store with per-call timeouts and a circuit breaker.
// Availability failures surface as ErrStoreUnavailable so callers fail the
// request closed with a 500 instead of hanging or misreporting a credential
// error.
type Resilient struct {
	inner    Store
	cfg      config.StoreConfig
	breakers *circuitbreaker.Manager
}

var _ Store = (*Resilient)(nil)

// NewResilient wraps the given store. The breaker treats not-found results
// as successes.
func NewResilient(inner Store, cfg config.StoreConfig) *Resilient {
	r := &Resilient{inner: inner, cfg: cfg}
	if cfg.Breaker.Enabled {
		r.breakers = circuitbreaker.NewManager(cfg.Breaker,
			circuitbreaker.WithIsSuccessful(func(err error) bool {
				return err == nil || IsNotFound(err)
			}),
		)
	}
	return r
}

// BreakerState returns the breaker state for health reporting. Reports
// closed when the breaker is disabled.
func (r *Resilient) BreakerState() circuitbreaker.State {
	if r.breakers == nil {
		return circuitbreaker.StateClosed
	}
	return r.breakers.State(breakerName)
}

// call runs fn under the configured timeout and breaker, translating
// availability failures to ErrStoreUnavailable.
func call[T any](r *Resilient, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var v T
	var err error
	if r.breakers != nil {
		v, err = circuitbreaker.ExecuteTyped(r.breakers, breakerName, func() (T, error) {
			return fn(ctx)
		})
	} else {
		v, err = fn(ctx)
	}

	result := "success"
	switch {
	case err == nil:
	case IsNotFound(err):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.DefaultMetrics.StoreCallsTotal.WithLabelValues(op, result).Inc()

	if err == nil || IsNotFound(err) {
		return v, err
	}
	if circuitbreaker.IsOpen(err) || errors.Is(err, context.DeadlineExceeded) {
		return v, gwerrors.Wrap(gwerrors.ErrStoreUnavailable, err.Error())
	}
	return v, gwerrors.Wrap(gwerrors.ErrStoreUnavailable, "store call failed: "+err.Error())
}

func (r *Resilient) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return call(r, ctx, "get_session", func(ctx context.Context) (*domain.Session, error) {
		return r.inner.GetSessionByID(ctx, id)
	})
}

func (r *Resilient) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := call(r, ctx, "create_session", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.CreateSession(ctx, sess)
	})
	return err
}

func (r *Resilient) DeleteSession(ctx context.Context, id string) error {
	_, err := call(r, ctx, "delete_session", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.DeleteSession(ctx, id)
	})
	return err
}

func (r *Resilient) TouchSession(ctx context.Context, id string) error {
	_, err := call(r, ctx, "touch_session", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.TouchSession(ctx, id)
	})
	return err
}

func (r *Resilient) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return call(r, ctx, "get_user", func(ctx context.Context) (*domain.User, error) {
		return r.inner.GetUserByID(ctx, id)
	})
}

func (r *Resilient) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return call(r, ctx, "get_user_by_email", func(ctx context.Context) (*domain.User, error) {
		return r.inner.GetUserByEmail(ctx, email)
	})
}

func (r *Resilient) GetAPIKeyByValue(ctx context.Context, keyValue string) (*domain.APIKeyRecord, error) {
	return call(r, ctx, "get_api_key", func(ctx context.Context) (*domain.APIKeyRecord, error) {
		return r.inner.GetAPIKeyByValue(ctx, keyValue)
	})
}

func (r *Resilient) IncrementUsage(ctx context.Context, keyID string, delta int64) error {
	_, err := call(r, ctx, "increment_usage", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.IncrementUsage(ctx, keyID, delta)
	})
	return err
}

func (r *Resilient) GetSigningSecret(ctx context.Context, keyValue string) (string, error) {
	return call(r, ctx, "get_signing_secret", func(ctx context.Context) (string, error) {
		return r.inner.GetSigningSecret(ctx, keyValue)
	})
}
