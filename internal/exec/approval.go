// Package exec implements the exec policy gate, its approval
// cache, and the streaming command runner.
package exec

import (
	"encoding/hex"
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// approvalTTL is how long a recorded approval stays valid. It is a
// fixed constant, not a config knob.
const approvalTTL = 600 * time.Second

// ApprovalCache is a concurrent, TTL-evicting cache of previously
// approved (session, tool, command) triples.
// Expired entries are purged on read, never returned as valid.
type ApprovalCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	clock   func() time.Time
}

// NewApprovalCache creates an empty ApprovalCache.
func NewApprovalCache() *ApprovalCache {
	return &ApprovalCache{
		entries: make(map[string]time.Time),
		clock:   time.Now,
	}
}

// cacheKey builds "session_key[:tool]:hex(hash(cmd))", omitting
// the tool segment when empty.
func cacheKey(sessionKey, tool, command string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(command))
	hash := hex.EncodeToString(h.Sum(nil))
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return sessionKey + ":" + hash
	}
	return sessionKey + ":" + tool + ":" + hash
}

// Hit reports whether (sessionKey, tool, command) has a live (unexpired)
// approval, purging the entry first if it has expired.
func (c *ApprovalCache) Hit(sessionKey, tool, command string) bool {
	key := cacheKey(sessionKey, tool, command)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[key]
	if !ok {
		return false
	}
	if !expiry.After(c.clock()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Remember records an approval for (sessionKey, tool, command), valid
// for approvalTTL from now, refreshing any existing entry.
func (c *ApprovalCache) Remember(sessionKey, tool, command string) {
	key := cacheKey(sessionKey, tool, command)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.clock().Add(approvalTTL)
}

// Len reports the number of entries currently tracked, including
// expired-but-not-yet-purged ones (used by internal/metrics).
func (c *ApprovalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
