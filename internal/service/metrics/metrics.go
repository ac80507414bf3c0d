package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the authentication gateway.
type Metrics struct {
	// Authentication metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	AuthDurationSeconds *prometheus.HistogramVec

	// Abuse-prevention metrics
	RateLimitRejectionsTotal *prometheus.CounterVec
	ReplayDetectionsTotal    prometheus.Counter
	CSRFRejectionsTotal      *prometheus.CounterVec

	// Audit metrics
	AuditEventsTotal *prometheus.CounterVec

	// Collaborator metrics
	StoreCallsTotal   *prometheus.CounterVec
	KeyCacheHitsTotal *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics *Metrics

func init() {
	DefaultMetrics = NewMetrics()
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Name:      "auth_attempts_total",
				Help:      "Total number of authentication attempts",
			},
			[]string{"method", "result"},
		),
		AuthDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "authgw",
				Name:      "auth_duration_seconds",
				Help:      "Authentication pipeline duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"method"},
		),
		RateLimitRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Total number of rate-limited requests",
			},
			[]string{"policy"},
		),
		ReplayDetectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "signature",
				Name:      "replay_detections_total",
				Help:      "Total number of signed requests rejected as replays",
			},
		),
		CSRFRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "csrf",
				Name:      "rejections_total",
				Help:      "Total number of CSRF validation failures",
			},
			[]string{"reason"},
		),
		AuditEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events recorded",
			},
			[]string{"event_type", "level"},
		),
		StoreCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "store",
				Name:      "calls_total",
				Help:      "Total number of persistence collaborator calls",
			},
			[]string{"operation", "result"},
		),
		KeyCacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgw",
				Subsystem: "apikey",
				Name:      "cache_requests_total",
				Help:      "API key validation cache requests",
			},
			[]string{"result"},
		),
	}
}
