package mcp

import (
	"sync"
	"time"
)

const (
	toolCacheTTL     = 30 * time.Second
	toolCacheMaxSize = 128
)

type toolCacheEntry struct {
	specs     []ToolSpec
	timestamp time.Time
}

// ToolCache is the tool-list cache: TTL 30s, max 128
// entries, LRU-evicted by timestamp on overflow.
type ToolCache struct {
	mu    sync.Mutex
	byKey map[string]*toolCacheEntry
	clock func() time.Time
}

// NewToolCache creates an empty ToolCache.
func NewToolCache() *ToolCache {
	return &ToolCache{byKey: make(map[string]*toolCacheEntry), clock: time.Now}
}

// Get returns the cached specs for cfg if present and unexpired.
func (c *ToolCache) Get(cfg ServerConfig) ([]ToolSpec, bool) {
	key := cacheKeyFor(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	if c.clock().Sub(entry.timestamp) > toolCacheTTL {
		delete(c.byKey, key)
		return nil, false
	}
	return entry.specs, true
}

// Put stores specs for cfg, evicting the oldest entry if at capacity.
func (c *ToolCache) Put(cfg ServerConfig, specs []ToolSpec) {
	key := cacheKeyFor(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byKey[key]; !exists && len(c.byKey) >= toolCacheMaxSize {
		c.evictOldestLocked()
	}
	c.byKey[key] = &toolCacheEntry{specs: specs, timestamp: c.clock()}
}

func (c *ToolCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, v := range c.byKey {
		if first || v.timestamp.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.timestamp
			first = false
		}
	}
	if !first {
		delete(c.byKey, oldestKey)
	}
}

// Len reports the number of entries currently cached (used by metrics).
func (c *ToolCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
