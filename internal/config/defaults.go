package config

// Defaults returns a Snapshot with the runtime's baseline values: a
// 1 MiB full-read bound, 30s MCP/LSP timeouts, 300ms diagnostics
// debounce, 1800s LSP idle TTL, and a 4 KiB stream chunk size for
// tool_output_delta events. The 600s approval TTL and the 300s LSP
// cleanup interval are fixed constants in their own packages, not
// config knobs.
func Defaults() Snapshot {
	return Snapshot{
		Security: Security{
			ExecPolicyMode: "allow",
			MaxReadBytes:   1 << 20,
		},
		MCP: MCP{
			TimeoutS: 30,
		},
		A2A: A2A{
			TimeoutS: 60,
		},
		Knowledge: Knowledge{
			DefaultTopK: 5,
		},
		LSP: LSP{
			Enabled:               false,
			TimeoutS:              30,
			DiagnosticsDebounceMS: 300,
			IdleTTLS:              1800,
		},
		Server: Server{
			StreamChunkSize: 4096,
		},
	}
}
