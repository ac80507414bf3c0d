// Package audit records security-relevant decisions as a hash-chained,
// tamper-evident event stream.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/metrics"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// Exporter defines the interface for audit event exporters.
type Exporter interface {
	// Export exports an audit event.
	Export(ctx context.Context, event *domain.AuditEvent) error

	// Name returns the exporter name.
	Name() string

	// Close closes the exporter.
	Close() error
}

// AlertFunc is notified of CRITICAL events. Invoked on its own goroutine;
// a slow or failing alert never delays the request path.
type AlertFunc func(event *domain.AuditEvent)

// Service appends events to the chain and fans them out to exporters. The
// last RingSize events stay in memory for the admin surface; exporters
// receive every event.
type Service struct {
	mu       sync.RWMutex
	ring     []*domain.AuditEvent
	next     int
	total    int64
	lastHash string

	cfg       config.AuditConfig
	exporters []Exporter
	alert     AlertFunc
}

// NewService creates an audit service.
func NewService(cfg config.AuditConfig) (*Service, error) {
	s := &Service{
		ring: make([]*domain.AuditEvent, 0, cfg.RingSize),
		cfg:  cfg,
	}

	if cfg.Stdout.Enabled {
		s.exporters = append(s.exporters, NewStdoutExporter(cfg.Stdout))
	}
	if cfg.Bolt.Enabled {
		exp, err := NewBoltExporter(cfg.Bolt)
		if err != nil {
			return nil, err
		}
		s.exporters = append(s.exporters, exp)
	}
	return s, nil
}

// SetAlertFunc installs the CRITICAL event hook.
func (s *Service) SetAlertFunc(fn AlertFunc) {
	s.mu.Lock()
	s.alert = fn
	s.mu.Unlock()
}

// Start initializes the audit service.
func (s *Service) Start(ctx context.Context) error {
	logger.Info("audit service started",
		logger.Bool("enabled", s.cfg.Enabled),
		logger.Int("ring_size", s.cfg.RingSize),
		logger.Int("exporters", len(s.exporters)),
	)
	return nil
}

// Stop shuts down the audit service.
func (s *Service) Stop() error {
	for _, exp := range s.exporters {
		if err := exp.Close(); err != nil {
			logger.Warn("error closing exporter",
				logger.String("exporter", exp.Name()),
				logger.Err(err),
			)
		}
	}
	return nil
}

// Record appends one event to the chain. The event is fully written (hash
// chained, buffered, exported) even if the originating request has already
// been answered or its context canceled. Never returns an error to the
// caller: a failed export is logged, not surfaced.
func (s *Service) Record(ctx context.Context, eventType domain.AuditEventType, level domain.AuditLevel, details map[string]string) *domain.AuditEvent {
	if !s.cfg.Enabled {
		return nil
	}

	event := &domain.AuditEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Level:     level,
		Details:   details,
	}

	s.mu.Lock()
	event.PrevHash = s.lastHash
	event.IntegrityHash = event.ComputeIntegrityHash(s.lastHash)
	s.lastHash = event.IntegrityHash
	s.append(event)
	alert := s.alert
	s.mu.Unlock()

	metrics.DefaultMetrics.AuditEventsTotal.WithLabelValues(string(eventType), string(level)).Inc()

	// Detach from the request context so cancellation cannot drop the event.
	exportCtx := context.WithoutCancel(ctx)
	for _, exp := range s.exporters {
		if err := exp.Export(exportCtx, event); err != nil {
			logger.Warn("failed to export audit event",
				logger.String("exporter", exp.Name()),
				logger.String("event_id", event.ID),
				logger.Err(err),
			)
		}
	}

	if level == domain.AuditLevelCritical && alert != nil {
		go alert(event)
	}
	return event
}

// append adds the event to the ring buffer, evicting the oldest when full.
// Caller holds s.mu.
func (s *Service) append(event *domain.AuditEvent) {
	s.total++
	if s.cfg.RingSize <= 0 {
		return
	}
	if len(s.ring) < s.cfg.RingSize {
		s.ring = append(s.ring, event)
		s.next = len(s.ring) % s.cfg.RingSize
		return
	}
	s.ring[s.next] = event
	s.next = (s.next + 1) % s.cfg.RingSize
}

// Recent returns up to n buffered events, oldest first.
func (s *Service) Recent(n int) []*domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := make([]*domain.AuditEvent, 0, len(s.ring))
	if len(s.ring) < s.cfg.RingSize {
		ordered = append(ordered, s.ring...)
	} else {
		ordered = append(ordered, s.ring[s.next:]...)
		ordered = append(ordered, s.ring[:s.next]...)
	}
	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Total returns the number of events recorded since start.
func (s *Service) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// VerifyReport is the outcome of a chain verification pass.
type VerifyReport struct {
	Checked  int    `json:"checked"`
	OK       bool   `json:"ok"`
	BrokenAt int    `json:"broken_at,omitempty"`
	BrokenID string `json:"broken_id,omitempty"`
}

// VerifyChain checks every buffered event's integrity hash and the links
// between consecutive events.
func (s *Service) VerifyChain() VerifyReport {
	events := s.Recent(0)
	report := VerifyReport{Checked: len(events), OK: true}
	return verifyEvents(events, report)
}

func verifyEvents(events []*domain.AuditEvent, report VerifyReport) VerifyReport {
	for i, event := range events {
		if !event.VerifyIntegrity() {
			report.OK = false
			report.BrokenAt = i
			report.BrokenID = event.ID
			return report
		}
		if i > 0 && event.PrevHash != events[i-1].IntegrityHash {
			report.OK = false
			report.BrokenAt = i
			report.BrokenID = event.ID
			return report
		}
	}
	return report
}
