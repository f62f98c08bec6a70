package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/metrics"
)

// diagnosticsWaitTimeout bounds how long a caller waits for fresh
// diagnostics after touching a file.
const diagnosticsWaitTimeout = 3000 * time.Millisecond

// cleanupInterval is how often the idle sweep scans for stale clients.
const cleanupInterval = 300 * time.Second

// ServerConfig is one entry of config.LSP.Servers.
type ServerConfig struct {
	ID                    string
	Command               string
	Args                  []string
	Env                   map[string]string
	Extensions            []string // empty matches every file
	RootMarkers           []string
	InitializationOptions json.RawMessage
}

func (s ServerConfig) matchesExtension(ext string) bool {
	if len(s.Extensions) == 0 {
		return true
	}
	for _, e := range s.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// WorkspaceRootFn resolves a user's workspace root, the sweep floor for
// root-marker search.
type WorkspaceRootFn func(user string) (string, error)

// Manager is the key->client cache with spawn-under-lock, idle sweep
// and config sync.
type Manager struct {
	mu      sync.Mutex
	clients map[ClientKey]*Client
	spawn   singleflight.Group

	servers        []ServerConfig
	enabled        bool
	requestTimeout time.Duration
	idleTTL        time.Duration
	debounce       time.Duration
	workspaceRoot  WorkspaceRootFn

	stopSweep chan struct{}
	metrics   *metrics.Metrics
}

// SetMetrics attaches a metrics sink; a nil receiver or argument is a
// safe no-op (metrics.Metrics itself tolerates nil).
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	if m == nil {
		return
	}
	m.metrics = mt
}

func (m *Manager) reportClientCount() {
	counts := make(map[string]int)
	m.mu.Lock()
	for key := range m.clients {
		counts[key.ServerID]++
	}
	servers := m.servers
	m.mu.Unlock()
	for _, s := range servers {
		m.metrics.SetLSPClients(s.ID, counts[s.ID])
	}
}

// NewManager constructs a Manager from a config snapshot's lsp.* fields.
func NewManager(enabled bool, servers []ServerConfig, requestTimeout, debounce, idleTTL time.Duration, workspaceRoot WorkspaceRootFn) *Manager {
	return &Manager{
		clients:        make(map[ClientKey]*Client),
		servers:        servers,
		enabled:        enabled,
		requestTimeout: requestTimeout,
		idleTTL:        idleTTL,
		debounce:       debounce,
		workspaceRoot:  workspaceRoot,
		stopSweep:      make(chan struct{}),
	}
}

// StartSweep launches the idle-eviction goroutine.
func (m *Manager) StartSweep() {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweepIdle()
			case <-m.stopSweep:
				return
			}
		}
	}()
}

func (m *Manager) StopSweep() { close(m.stopSweep) }

func (m *Manager) sweepIdle() {
	ttl := m.idleTTL
	if ttl <= 0 {
		ttl = 1800 * time.Second
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var staleClients []*Client
	for key, c := range m.clients {
		if c.LastUsed().Before(cutoff) {
			staleClients = append(staleClients, c)
			delete(m.clients, key)
		}
	}
	m.mu.Unlock()

	for _, c := range staleClients {
		c.Shutdown()
	}
	m.reportClientCount()
}

// SyncWithConfig tears down clients whose server id is no longer
// enabled.
func (m *Manager) SyncWithConfig(enabledServerIDs map[string]bool) {
	m.mu.Lock()
	var stale []ClientKey
	var staleClients []*Client
	for key, c := range m.clients {
		if !enabledServerIDs[key.ServerID] {
			stale = append(stale, key)
			staleClients = append(staleClients, c)
		}
	}
	for _, key := range stale {
		delete(m.clients, key)
	}
	m.mu.Unlock()

	for _, c := range staleClients {
		c.Shutdown()
	}
	m.reportClientCount()
}

// GetClients resolves the applicable servers
// for file's extension, compute each project root, and return a live
// client per (server, root), spawning as needed.
func (m *Manager) GetClients(ctx context.Context, user, file string) ([]*Client, error) {
	if !m.enabled {
		return nil, nil
	}

	root, err := m.workspaceRoot(user)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ConfigurationError, err, "resolve workspace root for %s", user)
	}

	ext := strings.TrimPrefix(filepath.Ext(file), ".")
	var out []*Client
	for _, server := range m.servers {
		if !server.matchesExtension(ext) {
			continue
		}
		projectRoot := computeProjectRoot(file, server.RootMarkers, root)
		key := ClientKey{UserID: user, CanonicalRoot: strings.ToLower(projectRoot), ServerID: server.ID}

		client, err := m.getOrSpawn(ctx, key, server, projectRoot)
		if err != nil {
			return nil, err
		}
		out = append(out, client)
	}
	return out, nil
}

func computeProjectRoot(file string, markers []string, fallbackRoot string) string {
	dir := filepath.Dir(file)
	for {
		for _, marker := range markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		if dir == fallbackRoot || !strings.HasPrefix(dir, fallbackRoot) {
			return fallbackRoot
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fallbackRoot
		}
		dir = parent
	}
}

func (m *Manager) getOrSpawn(ctx context.Context, key ClientKey, server ServerConfig, root string) (*Client, error) {
	m.mu.Lock()
	if c, ok := m.clients[key]; ok && c.Alive() {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	// Spawn is serialized per-key under a singleflight group; the lock is released before initialize.
	v, err, _ := m.spawn.Do(fmt.Sprintf("%s|%s|%s", key.UserID, key.CanonicalRoot, key.ServerID), func() (any, error) {
		m.mu.Lock()
		if c, ok := m.clients[key]; ok && c.Alive() {
			m.mu.Unlock()
			return c, nil
		}
		m.mu.Unlock()

		client, err := m.spawnClient(ctx, key, server, root)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.clients[key] = client
		m.mu.Unlock()
		m.metrics.RecordLSPSpawn(server.ID)
		m.reportClientCount()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (m *Manager) spawnClient(ctx context.Context, key ClientKey, server ServerConfig, root string) (*Client, error) {
	cmd := exec.Command(server.Command, server.Args...)
	cmd.Dir = root
	cmd.Env = os.Environ()
	for k, v := range server.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "open stdin pipe for %s", server.ID)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "open stdout pipe for %s", server.ID)
	}
	cmd.Stderr = nil // discarded

	if err := cmd.Start(); err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "spawn lsp server %s", server.ID)
	}

	client := NewClient(key, cmd, stdin, m.requestTimeout)
	go client.RunWriter()
	go client.RunReader(stdout, m.handleServerRequest(root, server))

	if err := m.initialize(ctx, client, root, server); err != nil {
		client.Shutdown()
		return nil, err
	}
	return client, nil
}

func (m *Manager) handleServerRequest(root string, server ServerConfig) func(string, json.RawMessage) (json.RawMessage, bool) {
	return func(method string, _ json.RawMessage) (json.RawMessage, bool) {
		switch method {
		case "workspace/configuration":
			settings := server.InitializationOptions
			if settings == nil {
				settings = json.RawMessage("{}")
			}
			result, _ := json.Marshal([]json.RawMessage{settings})
			return result, true
		case "workspace/workspaceFolders":
			result, _ := json.Marshal([]map[string]string{{"name": "workspace", "uri": pathToURI(root)}})
			return result, true
		case "client/registerCapability", "client/unregisterCapability",
			"window/workDoneProgress/create":
			return json.RawMessage("null"), true
		default:
			return json.RawMessage("null"), false
		}
	}
}

func (m *Manager) initialize(ctx context.Context, client *Client, root string, server ServerConfig) error {
	rootURI := pathToURI(root)
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"workspaceFolders": []map[string]string{
			{"name": "workspace", "uri": rootURI},
		},
		"initializationOptions": server.InitializationOptions,
		"capabilities": map[string]any{
			"workspace": map[string]any{
				"configuration":     true,
				"workspaceFolders":  true,
				"didChangeWatchedFiles": map[string]any{
					"dynamicRegistration": true,
				},
			},
			"window": map[string]any{
				"workDoneProgress": true,
			},
			"textDocument": map[string]any{
				"synchronization": map[string]any{
					"didOpen":   true,
					"didChange": true,
				},
				"publishDiagnostics": map[string]any{
					"versionSupport": true,
				},
			},
		},
	}

	if _, err := client.Request(ctx, "initialize", params); err != nil {
		return err
	}
	if err := client.Notify("initialized", map[string]any{}); err != nil {
		return err
	}
	if server.InitializationOptions != nil {
		_ = client.Notify("workspace/didChangeConfiguration", map[string]any{
			"settings": server.InitializationOptions,
		})
	}
	return nil
}

// OpenFile syncs a document to the server: first-open emits didOpen,
// subsequent calls bump the version and emit didChange.
func (m *Manager) OpenFile(client *Client, path, content string, notifySave bool) error {
	version, firstOpen := client.BumpOrOpenVersion(path)
	uri := pathToURI(path)

	changeType := 2
	if firstOpen {
		changeType = 1
	}
	_ = client.Notify("workspace/didChangeWatchedFiles", map[string]any{
		"changes": []map[string]any{{"uri": uri, "type": changeType}},
	})

	if firstOpen {
		if err := client.Notify("textDocument/didOpen", map[string]any{
			"textDocument": map[string]any{
				"uri":        uri,
				"languageId": "plaintext",
				"version":    version,
				"text":       content,
			},
		}); err != nil {
			return err
		}
	} else {
		if err := client.Notify("textDocument/didChange", map[string]any{
			"textDocument": map[string]any{"uri": uri, "version": version},
			"contentChanges": []map[string]any{
				{"text": content},
			},
		}); err != nil {
			return err
		}
	}

	if notifySave {
		_ = client.Notify("textDocument/didSave", map[string]any{
			"textDocument": map[string]any{"uri": uri},
		})
	}
	return nil
}

// WaitDiagnostics blocks for fresh diagnostics on path: subscribe before
// any work, debounce on repeated updates for path, bounded by
// diagnosticsWaitTimeout overall.
func (m *Manager) WaitDiagnostics(ctx context.Context, client *Client, path string) []Diagnostic {
	ch, cancel := client.Subscribe()
	defer cancel()

	debounce := m.debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	deadline := time.NewTimer(diagnosticsWaitTimeout)
	defer deadline.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case updated := <-ch:
			if updated != path {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(debounce)
			debounceCh = debounceTimer.C
		case <-debounceCh:
			return client.Diagnostics(path)
		case <-deadline.C:
			return client.Diagnostics(path)
		case <-ctx.Done():
			return client.Diagnostics(path)
		}
	}
}
