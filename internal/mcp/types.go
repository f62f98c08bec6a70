// Package mcp implements the MCP Session Layer: Streamable-HTTP
// and hand-rolled SSE transports with request correlation, a tool-list
// cache, and a client connection cache.
package mcp

import (
	"encoding/json"
	"sort"
	"strings"
)

// ServerConfig is one entry of config.MCP.Servers.
type ServerConfig struct {
	Name       string
	Endpoint   string
	Transport  string // "", "http", "streamable-http", "sse"
	Headers    map[string]string
	AllowTools []string
	Auth       map[string]string // "bearer_token"|"token"|"api_key"
	TimeoutS   int
}

// Transport is the normalized transport kind.
type Transport string

const (
	TransportStreamableHTTP Transport = "streamable-http"
	TransportSSE            Transport = "sse"
)

// NormalizeTransport canonicalizes the transport name: unset/http normalize to
// streamable-http; sse stays sse; anything else is rejected.
func NormalizeTransport(raw string) (Transport, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "http", "streamable-http":
		return TransportStreamableHTTP, true
	case "sse":
		return TransportSSE, true
	default:
		return "", false
	}
}

// ToolSpec is the wire contract exposed to the LLM.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// CallResult is the normalized tools/call result shape.
type CallResult struct {
	Content           []json.RawMessage `json:"content"`
	StructuredContent json.RawMessage   `json:"structured_content,omitempty"`
	Meta              json.RawMessage   `json:"meta,omitempty"`
	IsError           bool              `json:"is_error"`
}

// cacheKeyFor builds the tool-list cache key: name, endpoint,
// transport, sorted allow_tools, sorted lower-cased headers and the
// JSON-stringified auth block, concatenated.
func cacheKeyFor(cfg ServerConfig) string {
	allow := append([]string(nil), cfg.AllowTools...)
	sort.Strings(allow)

	headerKeys := make([]string, 0, len(cfg.Headers))
	headerValues := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		lk := strings.ToLower(k)
		headerKeys = append(headerKeys, lk)
		headerValues[lk] = v
	}
	sort.Strings(headerKeys)
	var headerParts []string
	for _, k := range headerKeys {
		headerParts = append(headerParts, k+"="+headerValues[k])
	}

	authJSON, _ := json.Marshal(cfg.Auth)

	var b strings.Builder
	b.WriteString(cfg.Name)
	b.WriteByte('|')
	b.WriteString(cfg.Endpoint)
	b.WriteByte('|')
	b.WriteString(cfg.Transport)
	b.WriteByte('|')
	b.WriteString(strings.Join(allow, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(headerParts, ","))
	b.WriteByte('|')
	b.Write(authJSON)
	return b.String()
}

// resolvedHeaders merges headers in precedence order: configured headers,
// then bearer/token/api-key auth, then (only if neither Authorization
// nor X-Api-Key is already set, and the server is local `wunder`'s MCP
// endpoint) the process-wide API key.
func resolvedHeaders(cfg ServerConfig, processAPIKey string) map[string]string {
	out := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		out[k] = v
	}

	if token := firstNonEmpty(cfg.Auth["bearer_token"], cfg.Auth["token"]); token != "" {
		out["Authorization"] = "Bearer " + token
	}
	if apiKey := cfg.Auth["api_key"]; apiKey != "" {
		out["X-Api-Key"] = apiKey
	}

	if isLocalWunderServer(cfg) && processAPIKey != "" {
		if !hasHeaderCI(out, "Authorization") && !hasHeaderCI(out, "X-Api-Key") {
			out["X-Api-Key"] = processAPIKey
		}
	}
	return out
}

func isLocalWunderServer(cfg ServerConfig) bool {
	if strings.EqualFold(cfg.Name, "wunder") {
		return true
	}
	return strings.Contains(cfg.Endpoint, "/wunder/mcp")
}

func hasHeaderCI(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
