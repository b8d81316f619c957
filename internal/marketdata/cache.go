package marketdata

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"binance-signal-monitor/internal/logging"
)

const (
	defaultCacheTTL    = 60 * time.Second
	defaultMaxSizeMB   = 100
	janitorInterval    = 60 * time.Second
	evictTargetPercent = 0.8
)

// CacheEntry wraps a cached series with expiry and usage bookkeeping
type CacheEntry struct {
	Series       *CandleSeries
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AccessCount  int64
	LastAccessed time.Time
	SizeBytes    int64
}

// IsExpired reports whether the entry's TTL has lapsed
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// IsStale reports whether the entry is older than maxAge
func (e *CacheEntry) IsStale(maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return time.Since(e.CreatedAt) > maxAge
}

// Touch updates access bookkeeping
func (e *CacheEntry) Touch() {
	e.AccessCount++
	e.LastAccessed = time.Now()
}

// CacheStats is a read-only view of cache counters
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
	SizeBytes int64 `json:"size_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// Cache is a TTL+LRU candle cache with a byte budget. One mutex covers
// the map, the LRU order and the byte counter.
type Cache struct {
	mu sync.Mutex

	entries  map[string]*list.Element // key -> element holding *cacheItem
	order    *list.List               // LRU order, MRU at the back
	ttl      time.Duration
	maxBytes int64
	curBytes int64

	hits      int64
	misses    int64
	evictions int64

	stop chan struct{}
	log  *logging.Logger
}

type cacheItem struct {
	key   string
	entry *CacheEntry
}

// NewCache creates a cache with the given TTL and byte budget in MB.
// Zero values fall back to the defaults (60s, 100 MB).
func NewCache(ttl time.Duration, maxSizeMB int) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}

	c := &Cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		stop:     make(chan struct{}),
		log:      logging.WithComponent("cache"),
	}

	go c.janitor()
	return c
}

// Close stops the background janitor
func (c *Cache) Close() {
	close(c.stop)
}

// Get returns the cached series for the request, or nil on miss. Misses
// when the key is absent, the entry expired, force-refresh is set, or
// the entry is staler than the request's budget.
func (c *Cache) Get(req DataRequest) *CandleSeries {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.ForceRefresh {
		c.misses++
		return nil
	}

	elem, ok := c.entries[req.CacheKey()]
	if !ok {
		c.misses++
		return nil
	}

	item := elem.Value.(*cacheItem)
	if item.entry.IsExpired() || item.entry.IsStale(req.CacheTimeout) {
		c.removeLocked(elem)
		c.misses++
		return nil
	}

	item.entry.Touch()
	c.order.MoveToBack(elem)
	c.hits++
	return item.entry.Series
}

// Put stores a series for the request, replacing any prior entry.
// ttl <= 0 uses the cache default.
func (c *Cache) Put(req DataRequest, series *CandleSeries, ttl time.Duration) {
	if series == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := req.CacheKey()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}

	size := series.estimatedBytes()
	if c.curBytes+size > c.maxBytes {
		c.evictToLocked(int64(float64(c.maxBytes)*evictTargetPercent) - size)
	}

	now := time.Now()
	entry := &CacheEntry{
		Series:       series,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastAccessed: now,
		SizeBytes:    size,
	}
	c.entries[key] = c.order.PushBack(&cacheItem{key: key, entry: entry})
	c.curBytes += size
}

// Invalidate drops all entries for a symbol; interval "" matches all
func (c *Cache) Invalidate(symbol, interval string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := symbol + "|"
	if interval != "" {
		prefix = symbol + "|" + interval + "|"
	}

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if strings.HasPrefix(elem.Value.(*cacheItem).key, prefix) {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Stats returns current counters
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		SizeBytes: c.curBytes,
		MaxBytes:  c.maxBytes,
	}
}

// evictToLocked removes LRU entries until curBytes <= target
func (c *Cache) evictToLocked(target int64) {
	if target < 0 {
		target = 0
	}
	for c.curBytes > target {
		front := c.order.Front()
		if front == nil {
			return
		}
		c.removeLocked(front)
		c.evictions++
	}
}

func (c *Cache) removeLocked(elem *list.Element) {
	item := elem.Value.(*cacheItem)
	c.order.Remove(elem)
	delete(c.entries, item.key)
	c.curBytes -= item.entry.SizeBytes
}

// janitor sweeps expired entries on a fixed interval
func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*cacheItem).entry.IsExpired() {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.log.Debug("janitor sweep", "removed", removed, "entries", len(c.entries))
	}
}
