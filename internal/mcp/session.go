package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/metrics"
)

// transportSession is satisfied by both streamableHTTPSession and
// sseSession so Manager can treat them uniformly after connect.
type transportSession interface {
	initialize(ctx context.Context) error
	listTools(ctx context.Context) ([]ToolSpec, error)
	callTool(ctx context.Context, tool string, args json.RawMessage) (*CallResult, error)
}

// Manager exposes the session layer's two operations, FetchTools and
// CallTool, backed by a client cache and a tool-list cache.
type Manager struct {
	clients       *ClientCache
	tools         *ToolCache
	processAPIKey string
	metrics       *metrics.Metrics
}

// NewManager creates a Manager; processAPIKey is injected into requests
// to local `wunder` MCP servers when no auth header is already set.
func NewManager(processAPIKey string) *Manager {
	return &Manager{clients: NewClientCache(), tools: NewToolCache(), processAPIKey: processAPIKey}
}

// SetMetrics attaches a metrics sink; a nil receiver or argument is a
// safe no-op (metrics.Metrics itself tolerates nil).
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	if m == nil {
		return
	}
	m.metrics = mt
}

func (m *Manager) timeout(cfg ServerConfig) time.Duration {
	if cfg.TimeoutS > 0 {
		return time.Duration(cfg.TimeoutS) * time.Second
	}
	return 30 * time.Second
}

func (m *Manager) connect(ctx context.Context, cfg ServerConfig) (transportSession, error) {
	transport, ok := NormalizeTransport(cfg.Transport)
	if !ok {
		return nil, coreerr.New(coreerr.Unsupported, "mcp server %s: unsupported transport %q", cfg.Name, cfg.Transport)
	}

	headers := resolvedHeaders(cfg, m.processAPIKey)
	client := m.clients.Get(headers, m.timeout(cfg))

	switch transport {
	case TransportStreamableHTTP:
		session := newStreamableHTTPSession(client, cfg, headers)
		if err := session.initialize(ctx); err != nil {
			return nil, err
		}
		return session, nil
	case TransportSSE:
		session, err := newSSESession(client, cfg, headers, m.timeout(cfg))
		if err != nil {
			return nil, err
		}
		if err := session.connect(ctx); err != nil {
			return nil, err
		}
		if err := session.initialize(ctx); err != nil {
			return nil, err
		}
		return session, nil
	default:
		return nil, coreerr.New(coreerr.Unsupported, "mcp server %s: unsupported transport %q", cfg.Name, cfg.Transport)
	}
}

// FetchTools serves from the tool-list
// cache within TTL, otherwise connects and re-populates it.
func (m *Manager) FetchTools(ctx context.Context, cfg ServerConfig) ([]ToolSpec, error) {
	if specs, ok := m.tools.Get(cfg); ok {
		m.metrics.RecordMCPCacheHit(cfg.Name)
		return specs, nil
	}
	m.metrics.RecordMCPCacheMiss(cfg.Name)

	session, err := m.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	specs, err := session.listTools(ctx)
	if err != nil {
		return nil, err
	}

	if len(cfg.AllowTools) > 0 {
		specs = filterAllowedTools(specs, cfg.AllowTools)
	}

	m.tools.Put(cfg, specs)
	return specs, nil
}

func filterAllowedTools(specs []ToolSpec, allow []string) []ToolSpec {
	allowed := make(map[string]bool, len(allow))
	for _, name := range allow {
		allowed[name] = true
	}
	out := make([]ToolSpec, 0, len(specs))
	for _, s := range specs {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// CallTool opens a fresh session per call (no
// connection caching is specified for this path, only the HTTP client
// and tool-list caches are process-wide).
func (m *Manager) CallTool(ctx context.Context, cfg ServerConfig, tool string, args json.RawMessage) (*CallResult, error) {
	session, err := m.connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return session.callTool(ctx, tool, args)
}
