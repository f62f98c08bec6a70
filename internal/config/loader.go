package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/obslog"
)

// fileConfig mirrors Snapshot's shape, decoded with the yaml struct
// tags (koanf.UnmarshalConf{Tag: "yaml"}) before being frozen into an
// immutable Snapshot.
type fileConfig struct {
	Security  Security  `yaml:"security"`
	MCP       MCP       `yaml:"mcp"`
	A2A       A2A       `yaml:"a2a"`
	Knowledge Knowledge `yaml:"knowledge"`
	LSP       LSP       `yaml:"lsp"`
	Server    Server    `yaml:"server"`
	APIKey    string    `yaml:"api_key"`
}

// Loader loads a layered Snapshot (defaults -> YAML file) and can
// watch the file for changes, publishing fresh immutable snapshots to
// the callbacks registered via OnChange. Environment variables are not
// read.
type Loader struct {
	path string

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	current   atomic.Pointer[Snapshot]
	onChange  []func(*Snapshot)
}

// NewLoader creates a Loader for the given YAML file path.
func NewLoader(path string) *Loader {
	l := &Loader{path: path}
	snap := Defaults()
	l.current.Store(&snap)
	return l
}

// Load reads the configured file (if any) over the defaults and returns
// the resulting immutable Snapshot. It is safe to call repeatedly.
func (l *Loader) Load() (*Snapshot, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(confmap.Provider(defaultsToMap(defaults), "."), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %q: %w", l.path, err)
		}
	}

	var fc fileConfig
	if err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	snap := Snapshot{
		Security:  fc.Security,
		MCP:       fc.MCP,
		A2A:       fc.A2A,
		Knowledge: fc.Knowledge,
		LSP:       fc.LSP,
		Server:    fc.Server,
		APIKey:    fc.APIKey,
	}
	if snap.Security.ExecPolicyMode == "" {
		snap.Security.ExecPolicyMode = defaults.Security.ExecPolicyMode
	}
	if snap.Security.MaxReadBytes == 0 {
		snap.Security.MaxReadBytes = defaults.Security.MaxReadBytes
	}
	if snap.MCP.TimeoutS == 0 {
		snap.MCP.TimeoutS = defaults.MCP.TimeoutS
	}
	if snap.A2A.TimeoutS == 0 {
		snap.A2A.TimeoutS = defaults.A2A.TimeoutS
	}
	if snap.Knowledge.DefaultTopK == 0 {
		snap.Knowledge.DefaultTopK = defaults.Knowledge.DefaultTopK
	}
	if snap.LSP.TimeoutS == 0 {
		snap.LSP.TimeoutS = defaults.LSP.TimeoutS
	}
	if snap.LSP.DiagnosticsDebounceMS == 0 {
		snap.LSP.DiagnosticsDebounceMS = defaults.LSP.DiagnosticsDebounceMS
	}
	if snap.LSP.IdleTTLS == 0 {
		snap.LSP.IdleTTLS = defaults.LSP.IdleTTLS
	}
	if snap.Server.StreamChunkSize == 0 {
		snap.Server.StreamChunkSize = defaults.Server.StreamChunkSize
	}

	l.current.Store(&snap)
	return &snap, nil
}

// Current returns the most recently loaded Snapshot without re-reading
// the file.
func (l *Loader) Current() *Snapshot {
	return l.current.Load()
}

// OnChange registers a callback invoked with the fresh Snapshot whenever
// Watch detects a file change. Callbacks are invoked synchronously from
// the watcher goroutine.
func (l *Loader) OnChange(fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts an fsnotify watch on the config file (a no-op if no path
// was configured) and reloads on every write event, notifying
// subscribers registered via OnChange. The returned stop function closes
// the watcher.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return func() {}, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch config file %q: %w", l.path, err)
	}

	l.mu.Lock()
	l.watcher = w
	l.mu.Unlock()

	log := obslog.Component("config")
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				snap, err := l.Load()
				if err != nil {
					log.Warn("config reload failed", "error", err)
					continue
				}
				l.mu.Lock()
				callbacks := append([]func(*Snapshot){}, l.onChange...)
				l.mu.Unlock()
				for _, cb := range callbacks {
					cb(snap)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}

// defaultsToMap flattens the zero-valued fields of Defaults() into a map
// koanf's confmap provider can load as the base layer. Only scalar
// defaults that matter for "not set" detection need to be represented;
// structured slices are left to the file layer.
func defaultsToMap(d Snapshot) map[string]any {
	return map[string]any{
		"security.exec_policy_mode": d.Security.ExecPolicyMode,
		"security.max_read_bytes":   d.Security.MaxReadBytes,
		"mcp.timeout_s":             d.MCP.TimeoutS,
		"a2a.timeout_s":             d.A2A.TimeoutS,
		"knowledge.default_top_k":   d.Knowledge.DefaultTopK,
		"lsp.timeout_s":             d.LSP.TimeoutS,
		"lsp.diagnostics_debounce_ms": d.LSP.DiagnosticsDebounceMS,
		"lsp.idle_ttl_s":            d.LSP.IdleTTLS,
		"server.stream_chunk_size":  d.Server.StreamChunkSize,
	}
}
