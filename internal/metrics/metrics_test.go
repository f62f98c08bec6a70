package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordToolCallIncrementsCounterAndHistogram(t *testing.T) {
	m := New()
	m.RecordToolCall("read_files", 5*time.Millisecond)
	m.RecordToolError("read_files", "path_out_of_bounds")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "wunder_coreboot_tool_calls_total")
	require.Contains(t, body, "wunder_coreboot_tool_errors_total")
}

func TestLSPAndMCPAndApprovalGaugesRender(t *testing.T) {
	m := New()
	m.SetLSPClients("gopls", 3)
	m.RecordLSPSpawn("gopls")
	m.RecordMCPCacheHit("search-server")
	m.RecordMCPCacheMiss("search-server")
	m.SetApprovalCacheSize("session-1", 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "wunder_coreboot_lsp_clients")
	require.Contains(t, body, "wunder_coreboot_lsp_spawns_total")
	require.Contains(t, body, "wunder_coreboot_mcp_tool_cache_hits_total")
	require.Contains(t, body, "wunder_coreboot_mcp_tool_cache_misses_total")
	require.Contains(t, body, "wunder_coreboot_exec_approval_cache_entries")
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordToolCall("x", time.Millisecond)
		m.RecordToolError("x", "timeout")
		m.SetLSPClients("gopls", 1)
		m.RecordLSPSpawn("gopls")
		m.RecordMCPCacheHit("s")
		m.RecordMCPCacheMiss("s")
		m.SetApprovalCacheSize("s1", 1)
		require.Nil(t, m.Registry())
	})
}
