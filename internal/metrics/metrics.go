// Package metrics exposes the Prometheus counters and gauges for the
// agent runtime core: tool invocation counts/durations, the LSP client cache
// size, MCP tool-cache hit rate, and approval cache size.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wunder_coreboot"

// Metrics holds every registered collector. A nil *Metrics is safe to
// call any method on (all become no-ops), so components can be built
// without a metrics backend wired in tests.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	lspClients *prometheus.GaugeVec
	lspSpawns  *prometheus.CounterVec

	mcpCacheHits   *prometheus.CounterVec
	mcpCacheMisses *prometheus.CounterVec

	approvalCacheSize *prometheus.GaugeVec
}

// New creates a Metrics instance registered on a fresh Prometheus registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations by canonical name.",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help:    "Tool invocation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool invocations that returned a tagged error.",
	}, []string{"tool_name", "error_kind"})

	m.lspClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "lsp", Name: "clients",
		Help: "Number of live LSP clients held by the manager.",
	}, []string{"server_id"})

	m.lspSpawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "lsp", Name: "spawns_total",
		Help: "Total number of LSP client subprocesses spawned.",
	}, []string{"server_id"})

	m.mcpCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "mcp", Name: "tool_cache_hits_total",
		Help: "Total number of fetch_tools calls served from the tool-list cache.",
	}, []string{"server"})

	m.mcpCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "mcp", Name: "tool_cache_misses_total",
		Help: "Total number of fetch_tools calls that required a network round-trip.",
	}, []string{"server"})

	m.approvalCacheSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "exec", Name: "approval_cache_entries",
		Help: "Number of live (non-expired) entries in the approval cache.",
	}, []string{"session_key"})

	m.registry.MustRegister(
		m.toolCalls, m.toolCallDuration, m.toolErrors,
		m.lspClients, m.lspSpawns,
		m.mcpCacheHits, m.mcpCacheMisses,
		m.approvalCacheSize,
	)
	return m
}

// RecordToolCall records one tool invocation and its duration.
func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError records a tool invocation that failed with errorKind.
func (m *Metrics) RecordToolError(toolName string, errorKind string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorKind).Inc()
}

// SetLSPClients sets the current live-client gauge for serverID.
func (m *Metrics) SetLSPClients(serverID string, count int) {
	if m == nil {
		return
	}
	m.lspClients.WithLabelValues(serverID).Set(float64(count))
}

// RecordLSPSpawn records a new LSP client subprocess spawn for serverID.
func (m *Metrics) RecordLSPSpawn(serverID string) {
	if m == nil {
		return
	}
	m.lspSpawns.WithLabelValues(serverID).Inc()
}

// RecordMCPCacheHit records a fetch_tools call served from cache.
func (m *Metrics) RecordMCPCacheHit(server string) {
	if m == nil {
		return
	}
	m.mcpCacheHits.WithLabelValues(server).Inc()
}

// RecordMCPCacheMiss records a fetch_tools call that hit the network.
func (m *Metrics) RecordMCPCacheMiss(server string) {
	if m == nil {
		return
	}
	m.mcpCacheMisses.WithLabelValues(server).Inc()
}

// SetApprovalCacheSize sets the live-entry gauge for sessionKey.
func (m *Metrics) SetApprovalCacheSize(sessionKey string, size int) {
	if m == nil {
		return
	}
	m.approvalCacheSize.WithLabelValues(sessionKey).Set(float64(size))
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
