package apikey

import (
	"container/list"
	"sync"
	"time"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/internal/service/metrics"
)

// validationCache is an in-memory LRU cache with TTL for API key validation
// results. Only successful validations are cached; the entry TTL bounds how
// long a revoked key can keep validating from cache.
type validationCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // LRU order
	enabled  bool

	hits   int64
	misses int64
}

// cacheEntry is a single cached validation result.
type cacheEntry struct {
	key       string
	record    *domain.APIKeyRecord
	expiresAt time.Time
}

func newValidationCache(cfg config.APIKeyCacheConfig) *validationCache {
	return &validationCache{
		capacity: cfg.MaxSize,
		ttl:      cfg.TTL,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		enabled:  cfg.Enabled,
	}
}

// Get returns the cached record for the key value, if present and fresh.
func (c *validationCache) Get(keyValue string) (*domain.APIKeyRecord, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[keyValue]
	if !ok {
		c.misses++
		metrics.DefaultMetrics.KeyCacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses++
		metrics.DefaultMetrics.KeyCacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	metrics.DefaultMetrics.KeyCacheHitsTotal.WithLabelValues("hit").Inc()

	// Return a copy to prevent mutation.
	record := *entry.record
	record.Permissions = append([]string(nil), entry.record.Permissions...)
	return &record, true
}

// Set stores a validation result.
func (c *validationCache) Set(keyValue string, record *domain.APIKeyRecord) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[keyValue]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.record = record
		entry.expiresAt = time.Now().Add(c.ttl)
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	entry := &cacheEntry{
		key:       keyValue,
		record:    record,
		expiresAt: time.Now().Add(c.ttl),
	}
	elem := c.order.PushFront(entry)
	c.items[keyValue] = elem
}

// Invalidate removes a key value from the cache. Used on in-process
// revocation so the revoked key stops validating immediately.
func (c *validationCache) Invalidate(keyValue string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[keyValue]; ok {
		c.removeElement(elem)
	}
}

// Clear empties the cache.
func (c *validationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns cache statistics.
func (c *validationCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:     c.order.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		HitRate:  rate,
	}
}

func (c *validationCache) evictOldest() {
	elem := c.order.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

func (c *validationCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}

// CacheStats holds validation cache statistics.
type CacheStats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
}
