package apikey

import (
	"context"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/internal/store"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// UsageRecorder batches per-key usage counts and persists them on an
// interval, keeping usage accounting off the request path. A lost batch
// costs approximate counters, never a failed authentication.
type UsageRecorder struct {
	mu      sync.Mutex
	pending map[string]int64

	keys     store.APIKeyStore
	interval time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewUsageRecorder creates a usage recorder flushing at the given interval.
func NewUsageRecorder(keys store.APIKeyStore, interval time.Duration) *UsageRecorder {
	return &UsageRecorder{
		pending:  make(map[string]int64),
		keys:     keys,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Record notes one successful authentication for the key. Never blocks on
// persistence.
func (r *UsageRecorder) Record(keyID string) {
	r.mu.Lock()
	r.pending[keyID]++
	r.mu.Unlock()
}

// Start launches the background flush loop.
func (r *UsageRecorder) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				r.flush()
				return
			case <-ticker.C:
				r.flush()
			}
		}
	}()
}

// Stop flushes remaining counts and stops the loop.
func (r *UsageRecorder) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		r.flush()
		return
	}
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// Flush persists pending counts immediately. Exposed for tests.
func (r *UsageRecorder) Flush() {
	r.flush()
}

func (r *UsageRecorder) flush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.pending
	r.pending = make(map[string]int64)
	r.mu.Unlock()

	ctx := context.Background()
	for keyID, delta := range batch {
		if err := r.keys.IncrementUsage(ctx, keyID, delta); err != nil {
			logger.Warn("usage flush failed",
				logger.String("key_id", keyID),
				logger.Int64("delta", delta),
				logger.Err(err),
			)
		}
	}
}
