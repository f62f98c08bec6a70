package mcp

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestToolCacheExpiresAfterTTL(t *testing.T) {
	cache := NewToolCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	cfg := ServerConfig{Name: "s", Endpoint: "http://s", Transport: "sse"}
	cache.Put(cfg, []ToolSpec{{Name: "lint"}})

	now = now.Add(10 * time.Second)
	specs, ok := cache.Get(cfg)
	require.True(t, ok)
	require.Len(t, specs, 1)

	now = now.Add(25 * time.Second)
	_, ok = cache.Get(cfg)
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}

func TestToolCacheKeyDistinguishesAllowToolsAndHeaders(t *testing.T) {
	base := ServerConfig{Name: "s", Endpoint: "http://s"}
	withAllow := base
	withAllow.AllowTools = []string{"a"}
	withHeader := base
	withHeader.Headers = map[string]string{"X-Trace": "1"}

	require.NotEqual(t, cacheKeyFor(base), cacheKeyFor(withAllow))
	require.NotEqual(t, cacheKeyFor(base), cacheKeyFor(withHeader))
	require.Equal(t, cacheKeyFor(base), cacheKeyFor(base))
}

func TestToolCacheEvictsOldestAtCapacity(t *testing.T) {
	cache := NewToolCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	oldest := ServerConfig{Name: "server-0", Endpoint: "http://0"}
	cache.Put(oldest, nil)
	for i := 1; i < toolCacheMaxSize; i++ {
		now = now.Add(time.Millisecond)
		cache.Put(ServerConfig{Name: fmt.Sprintf("server-%d", i), Endpoint: "http://x"}, nil)
	}
	require.Equal(t, toolCacheMaxSize, cache.Len())

	now = now.Add(time.Millisecond)
	cache.Put(ServerConfig{Name: "overflow", Endpoint: "http://y"}, nil)
	require.Equal(t, toolCacheMaxSize, cache.Len())

	_, ok := cache.Get(oldest)
	require.False(t, ok)
}
