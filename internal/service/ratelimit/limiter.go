// Package ratelimit enforces named per-identity rate limit policies.
package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/logger"
)

const limiterShards = 32

// Limiter tracks consumption per (policy, identity) pair using fixed windows
// with a block duration after exhaustion. Check and consume are a single
// atomic step so concurrent requests cannot both take the last point.
//
// Policies can be swapped at runtime for hot reload; in-flight counters keep
// their windows and pick up the new allowances on the next consumption.
type Limiter struct {
	policyMu sync.RWMutex
	policies map[string]config.PolicyConfig

	shards [limiterShards]limiterShard

	now func() time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	entries map[string]*entryState
}

// entryState is the counter for one (policy, identity) pair.
type entryState struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// NewLimiter creates a limiter with the given named policies.
func NewLimiter(policies map[string]config.PolicyConfig) *Limiter {
	l := &Limiter{
		policies: clonePolicies(policies),
		now:      time.Now,
	}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]*entryState)
	}
	return l
}

// Consume takes one point for the identity under the named policy. Returns
// nil when allowed, a rate-limited error carrying a retry hint when not.
// Unknown policy names are a wiring bug and fail closed.
func (l *Limiter) Consume(policy, identity string) error {
	l.policyMu.RLock()
	p, ok := l.policies[policy]
	l.policyMu.RUnlock()
	if !ok {
		return errors.NewAuthError(errors.CodeInternalError, "internal error", fmt.Errorf("unknown rate limit policy %q", policy))
	}

	key := policy + "\x00" + identity
	sh := l.shard(key)
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.entries[key]
	if !ok {
		st = &entryState{windowStart: now}
		sh.entries[key] = st
	}

	if now.Before(st.blockedUntil) {
		metrics.DefaultMetrics.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
		return rejectedErr(policy, st.blockedUntil.Sub(now))
	}

	if now.Sub(st.windowStart) >= p.Window {
		st.count = 0
		st.windowStart = now
		st.blockedUntil = time.Time{}
	}

	if st.count >= p.MaxPoints {
		st.blockedUntil = now.Add(p.BlockDuration)
		metrics.DefaultMetrics.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
		logger.Warn("rate limit exceeded",
			logger.String("policy", policy),
			logger.String("identity", identity),
			logger.Duration("blocked_for", p.BlockDuration),
		)
		return rejectedErr(policy, p.BlockDuration)
	}

	st.count++
	return nil
}

// Remaining returns the points left for the identity in the current window.
func (l *Limiter) Remaining(policy, identity string) int {
	l.policyMu.RLock()
	p, ok := l.policies[policy]
	l.policyMu.RUnlock()
	if !ok {
		return 0
	}

	key := policy + "\x00" + identity
	sh := l.shard(key)
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.entries[key]
	if !ok {
		return p.MaxPoints
	}
	if now.Before(st.blockedUntil) {
		return 0
	}
	if now.Sub(st.windowStart) >= p.Window {
		return p.MaxPoints
	}
	return p.MaxPoints - st.count
}

// UpdatePolicies replaces the policy set. Existing counters are kept.
func (l *Limiter) UpdatePolicies(policies map[string]config.PolicyConfig) {
	l.policyMu.Lock()
	l.policies = clonePolicies(policies)
	l.policyMu.Unlock()
	logger.Info("rate limit policies updated", logger.Int("count", len(policies)))
}

// Policies returns a copy of the current policy set.
func (l *Limiter) Policies() map[string]config.PolicyConfig {
	l.policyMu.RLock()
	defer l.policyMu.RUnlock()
	return clonePolicies(l.policies)
}

// StartSweeper launches a background goroutine removing counters that can no
// longer influence a decision.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *Limiter) sweep() {
	l.policyMu.RLock()
	maxWindow := time.Duration(0)
	for _, p := range l.policies {
		if p.Window > maxWindow {
			maxWindow = p.Window
		}
	}
	l.policyMu.RUnlock()

	now := l.now()
	removed := 0
	for i := range l.shards {
		sh := &l.shards[i]
		sh.mu.Lock()
		for key, st := range sh.entries {
			if now.After(st.blockedUntil) && now.Sub(st.windowStart) >= maxWindow {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		logger.Debug("rate limit sweep completed", logger.Int("removed", removed))
	}
}

func (l *Limiter) shard(key string) *limiterShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%limiterShards]
}

func rejectedErr(policy string, retryIn time.Duration) error {
	seconds := int(math.Ceil(retryIn.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return errors.NewAuthError(errors.CodeRateLimited, "rate limit exceeded", errors.ErrRateLimitExceeded).
		WithDetail("policy", policy).
		WithRetryAfter(seconds)
}

func clonePolicies(in map[string]config.PolicyConfig) map[string]config.PolicyConfig {
	out := make(map[string]config.PolicyConfig, len(in))
	for name, p := range in {
		out[name] = p
	}
	return out
}
