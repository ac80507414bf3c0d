package signature

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/pkg/logger"
)

const nonceShards = 16

// NonceStore remembers recently seen nonce keys for replay detection. It is
// sharded to keep lock contention low under concurrent verification, and a
// background sweeper drops entries once they can no longer matter (twice the
// acceptance window past their timestamp).
type NonceStore struct {
	shards [nonceShards]nonceShard
}

type nonceShard struct {
	mu      sync.Mutex
	entries map[string]time.Time // nonce key -> expiry
}

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	s := &NonceStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]time.Time)
	}
	return s
}

func (s *NonceStore) shard(key string) *nonceShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%nonceShards]
}

// Seen reports whether the nonce key is currently recorded.
func (s *NonceStore) Seen(key string) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	expiry, ok := sh.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(sh.entries, key)
		return false
	}
	return true
}

// Record stores the nonce key until expiry. Returns false if the key was
// already recorded, which callers treat as a replay. The check and insert are
// atomic so two concurrent requests with the same nonce cannot both succeed.
func (s *NonceStore) Record(key string, expiry time.Time) bool {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if existing, ok := sh.entries[key]; ok && time.Now().Before(existing) {
		return false
	}
	sh.entries[key] = expiry
	return true
}

// Len returns the number of recorded nonces across all shards.
func (s *NonceStore) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// StartSweeper launches a background goroutine removing expired entries.
func (s *NonceStore) StartSweeper(ctx context.Context, interval time.Duration) {
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

func (s *NonceStore) sweep() {
	now := time.Now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, expiry := range sh.entries {
			if now.After(expiry) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		logger.Debug("nonce sweep completed", logger.Int("removed", removed))
	}
}
