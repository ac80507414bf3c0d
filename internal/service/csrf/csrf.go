// Package csrf issues and validates single-use CSRF tokens for
// state-changing browser requests.
package csrf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	"github.com/your-org/auth-gateway/pkg/errors"
	"github.com/your-org/auth-gateway/pkg/logger"
)

const tokenBytes = 32

// Service holds issued tokens. Each token is bound to the session it was
// issued for and is consumed on first successful validation.
type Service struct {
	cfg config.CSRFConfig

	mu     sync.Mutex
	tokens map[string]tokenEntry

	now func() time.Time
}

type tokenEntry struct {
	sessionID string
	expiresAt time.Time
}

// NewService creates a CSRF token service.
func NewService(cfg config.CSRFConfig) *Service {
	return &Service{
		cfg:    cfg,
		tokens: make(map[string]tokenEntry),
		now:    time.Now,
	}
}

// Issue mints a token bound to the session.
func (s *Service) Issue(sessionID string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewAuthError(errors.CodeInternalError, "internal error", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.tokens[token] = tokenEntry{
		sessionID: sessionID,
		expiresAt: s.now().Add(s.cfg.TokenTTL),
	}
	s.mu.Unlock()
	return token, nil
}

// Validate consumes the token for the session. Lookup, session check, and
// removal happen under one lock so a token can never validate twice, even
// for two concurrent requests.
func (s *Service) Validate(token, sessionID string) error {
	if token == "" {
		return s.reject("missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return s.reject("unknown")
	}
	if s.now().After(entry.expiresAt) {
		delete(s.tokens, token)
		return s.reject("expired")
	}
	if entry.sessionID != sessionID {
		// The token stays live for its own session.
		return s.reject("session_mismatch")
	}

	delete(s.tokens, token)
	return nil
}

// Len returns the number of live tokens.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// StartSweeper launches a background goroutine removing expired tokens.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Service) sweep() {
	now := s.now()
	removed := 0

	s.mu.Lock()
	for token, entry := range s.tokens {
		if now.After(entry.expiresAt) {
			delete(s.tokens, token)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		logger.Debug("csrf token sweep completed", logger.Int("removed", removed))
	}
}

func (s *Service) reject(reason string) error {
	metrics.DefaultMetrics.CSRFRejectionsTotal.WithLabelValues(reason).Inc()
	return errors.NewAuthError(errors.CodeCSRFInvalid, "csrf validation failed", errors.ErrCSRFTokenInvalid)
}
