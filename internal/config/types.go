// Package config holds the immutable per-invocation configuration
// snapshot consumed by every subsystem, plus the
// layered loader that builds one from defaults and a YAML file.
package config

// Snapshot is an immutable clone of configuration handed to a tool
// invocation. Subsystems only ever see a Snapshot, never a mutable
// config object, so concurrent invocations can't race on config reads.
type Snapshot struct {
	Security  Security  `yaml:"security"`
	MCP       MCP       `yaml:"mcp"`
	A2A       A2A       `yaml:"a2a"`
	Knowledge Knowledge `yaml:"knowledge"`
	LSP       LSP       `yaml:"lsp"`
	Server    Server    `yaml:"server"`
	APIKey    string    `yaml:"api_key,omitempty"`
}

// Security governs path confinement and command execution.
type Security struct {
	AllowPaths     []string `yaml:"allow_paths,omitempty"`
	AllowCommands  []string `yaml:"allow_commands,omitempty"`
	DenyGlobs      []string `yaml:"deny_globs,omitempty"`
	ExecPolicyMode string   `yaml:"exec_policy_mode,omitempty"` // "allow" | "audit" | "enforce"
	SandboxEnabled bool     `yaml:"sandbox_enabled,omitempty"`
	MaxReadBytes   int64    `yaml:"max_read_bytes,omitempty"` // full-read size bound, default 1 MiB
}

// MCPServer describes one configured MCP server.
type MCPServer struct {
	Name        string            `yaml:"name"`
	Transport   string            `yaml:"transport,omitempty"` // "", "http", "streamable-http", "sse"
	Endpoint    string            `yaml:"endpoint"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	AllowTools  []string          `yaml:"allow_tools,omitempty"`
	BearerToken string            `yaml:"bearer_token,omitempty"`
	APIKey      string            `yaml:"api_key,omitempty"`
	Disabled    bool              `yaml:"disabled,omitempty"`
}

// MCP holds the MCP session layer's configuration.
type MCP struct {
	Servers  []MCPServer `yaml:"servers,omitempty"`
	TimeoutS int         `yaml:"timeout_s,omitempty"`
}

// A2AService describes one configured remote A2A endpoint.
type A2AService struct {
	Name     string            `yaml:"name"`
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Token    string            `yaml:"token,omitempty"`
}

// A2A holds the A2A client's configuration.
type A2A struct {
	Services []A2AService `yaml:"services,omitempty"`
	TimeoutS int          `yaml:"timeout_s,omitempty"`
}

// KnowledgeBase describes one configured knowledge base (vector or text).
type KnowledgeBase struct {
	Name           string  `yaml:"name"`
	UserScoped     bool    `yaml:"user_scoped,omitempty"`
	Vector         bool    `yaml:"vector,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model,omitempty"`
	ScoreThreshold float64 `yaml:"score_threshold,omitempty"`
	TopK           int     `yaml:"top_k,omitempty"`
}

// Knowledge holds knowledge-routing configuration.
type Knowledge struct {
	Bases       []KnowledgeBase `yaml:"bases,omitempty"`
	DefaultTopK int             `yaml:"default_top_k,omitempty"`
}

// LSPServer describes one configured language server.
type LSPServer struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name,omitempty"`
	Command        []string          `yaml:"command"`
	Env            map[string]string `yaml:"env,omitempty"`
	Extensions     []string          `yaml:"extensions,omitempty"`
	RootMarkers    []string          `yaml:"root_markers,omitempty"`
	Initialization map[string]any    `yaml:"initialization,omitempty"`
	Disabled       bool              `yaml:"disabled,omitempty"`
}

// LSP holds the LSP client manager's configuration.
type LSP struct {
	Enabled               bool        `yaml:"enabled,omitempty"`
	Servers               []LSPServer `yaml:"servers,omitempty"`
	TimeoutS              int         `yaml:"timeout_s,omitempty"`
	DiagnosticsDebounceMS int         `yaml:"diagnostics_debounce_ms,omitempty"`
	IdleTTLS              int         `yaml:"idle_ttl_s,omitempty"`
}

// Server holds server-wide knobs consumed by the command runner's
// streaming tee.
type Server struct {
	StreamChunkSize int `yaml:"stream_chunk_size,omitempty"`
}
