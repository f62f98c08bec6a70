package mcp

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/httpx"
)

// ClientCache pools immutable *httpx.Client instances keyed by (sorted
// default headers, timeout).
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*httpx.Client
}

// NewClientCache creates an empty ClientCache.
func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[string]*httpx.Client)}
}

func clientCacheKey(headers map[string]string, timeout time.Duration) string {
	keys := make([]string, 0, len(headers))
	values := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		keys = append(keys, lk)
		values[lk] = v
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
		b.WriteByte(';')
	}
	b.WriteString(timeout.String())
	return b.String()
}

// Get returns the cached client for (headers, timeout), building and
// caching a new one if needed. Clients are immutable after construction.
func (c *ClientCache) Get(headers map[string]string, timeout time.Duration) *httpx.Client {
	key := clientCacheKey(headers, timeout)

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client
	}

	client := httpx.New(
		httpx.WithHTTPClient(&http.Client{Timeout: timeout}),
		httpx.WithMaxRetries(3),
		httpx.WithBaseDelay(500*time.Millisecond),
	)
	c.clients[key] = client
	return client
}
