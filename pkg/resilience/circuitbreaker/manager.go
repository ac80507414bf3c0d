// Package circuitbreaker provides circuit breaker functionality using sony/gobreaker.
package circuitbreaker

import (
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// State represents the circuit breaker state.
type State = gobreaker.State

// States
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Manager manages circuit breakers for external collaborators.
type Manager struct {
	cfg          config.CircuitBreakerConfig
	isSuccessful func(error) bool
	breakers     map[string]*gobreaker.CircuitBreaker[any]
	mu           sync.RWMutex
}

// Option configures the Manager.
type Option func(*Manager)

// WithIsSuccessful sets the predicate deciding whether a returned error
// counts as a breaker failure. Domain outcomes (e.g. not-found) should not
// open the breaker.
func WithIsSuccessful(fn func(error) bool) Option {
	return func(m *Manager) {
		m.isSuccessful = fn
	}
}

// NewManager creates a new circuit breaker manager.
func NewManager(cfg config.CircuitBreakerConfig, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns or creates a circuit breaker for the given collaborator name.
func (m *Manager) Get(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	cb = m.createBreaker(name)
	m.breakers[name] = cb
	return cb
}

// createBreaker creates a new circuit breaker with the configured settings.
func (m *Manager) createBreaker(name string) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:         name,
		MaxRequests:  m.cfg.MaxRequests,
		Interval:     m.cfg.Interval,
		Timeout:      m.cfg.Timeout,
		IsSuccessful: m.isSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(m.cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logger.String("collaborator", name),
				logger.String("from", stateToString(from)),
				logger.String("to", stateToString(to)),
			)
		},
	})
}

// ExecuteTyped executes a typed function with circuit breaker protection.
func ExecuteTyped[T any](m *Manager, name string, fn func() (T, error)) (T, error) {
	cb := m.Get(name)
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// IsOpen reports whether the named breaker is currently rejecting calls.
func IsOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// State returns the current state of a circuit breaker.
func (m *Manager) State(name string) gobreaker.State {
	return m.Get(name).State()
}

// Counts returns the current counts for a circuit breaker.
func (m *Manager) Counts(name string) gobreaker.Counts {
	return m.Get(name).Counts()
}

// stateToString converts circuit breaker state to string.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
