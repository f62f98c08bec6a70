// Package workspace defines the workspace manager collaborator contract
// consumed by the core and provides a disk-backed reference
// implementation good enough to drive the built-in tool set and its
// tests. Multi-user account/auth semantics are out of scope; this
// implementation keys everything by the caller-supplied user_id string.
package workspace

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/pathfs"
)

// Manager is the workspace collaborator contract the core consumes. The
// core depends only on this interface; HTTP routing, persistence format,
// and account management that might sit behind a real implementation are
// explicitly out of scope.
type Manager interface {
	ResolvePath(userID, raw string) (string, error)
	WriteFile(userID, path, content string, createParents bool) error
	ReadFile(userID, path string, maxBytes int64) ([]byte, error)
	EnsureUserRoot(userID string) (string, error)
	MarkTreeDirty(userID string)
	BumpVersion(userID string) int64
	WorkspaceRoot(userID string) (string, error)
	DisplayPath(userID, path string) string
	AppendToolLog(userID string, payload map[string]any)

	// Roots returns the path-confinement roots for userID, built once
	// per (config, skills, user-binding) snapshot and shared by
	// reference across concurrent invocations.
	Roots(userID string) (*pathfs.Roots, error)
}

// DiskManager is a straightforward filesystem-backed Manager: one root
// directory per user under a base directory. It's intentionally simple;
// production deployments are expected to supply their own Manager (e.g.
// backed by a database-tracked workspace registry) since persistence
// format is an external collaborator concern.
type DiskManager struct {
	baseDir    string
	skillRoots []string

	mu       sync.Mutex
	roots    map[string]*pathfs.Roots
	versions map[string]*atomic.Int64
	dirty    map[string]bool
	toolLog  map[string][]map[string]any
}

// NewDiskManager creates a DiskManager rooted at baseDir. skillRoots are
// appended to every user's read-roots (read roots are the allow roots
// plus the skill roots).
func NewDiskManager(baseDir string, skillRoots []string) *DiskManager {
	return &DiskManager{
		baseDir:    baseDir,
		skillRoots: skillRoots,
		roots:      make(map[string]*pathfs.Roots),
		versions:   make(map[string]*atomic.Int64),
		dirty:      make(map[string]bool),
		toolLog:    make(map[string][]map[string]any),
	}
}

func (m *DiskManager) userDir(userID string) string {
	return filepath.Join(m.baseDir, userID)
}

// EnsureUserRoot creates (if needed) and returns the user's workspace root.
func (m *DiskManager) EnsureUserRoot(userID string) (string, error) {
	dir := m.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", coreerr.Wrap(coreerr.TransportError, err, "create workspace root for %s", userID)
	}
	return pathfs.Canonicalize(dir)
}

// WorkspaceRoot returns the user's workspace root without creating it.
func (m *DiskManager) WorkspaceRoot(userID string) (string, error) {
	return pathfs.Canonicalize(m.userDir(userID))
}

// Roots returns (building and caching on first use) the ToolRoots for userID.
func (m *DiskManager) Roots(userID string) (*pathfs.Roots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.roots[userID]; ok {
		return r, nil
	}

	root, err := m.EnsureUserRoot(userID)
	if err != nil {
		return nil, err
	}
	r, err := pathfs.NewRoots([]string{root}, m.skillRoots, nil)
	if err != nil {
		return nil, err
	}
	m.roots[userID] = r
	return r, nil
}

// ResolvePath resolves raw against the user's write-capable allow-roots.
func (m *DiskManager) ResolvePath(userID, raw string) (string, error) {
	roots, err := m.Roots(userID)
	if err != nil {
		return "", err
	}
	return pathfs.Resolve(raw, roots, false)
}

// WriteFile writes content to path (resolved against the user's
// allow-roots), creating parent directories when createParents is true.
func (m *DiskManager) WriteFile(userID, path, content string, createParents bool) error {
	abs, err := m.ResolvePath(userID, path)
	if err != nil {
		return err
	}
	if createParents {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return coreerr.Wrap(coreerr.TransportError, err, "create parent directories for %s", path)
		}
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "write file %s", path)
	}
	m.BumpVersion(userID)
	return nil
}

// ReadFile reads up to maxBytes of path, resolved against the user's
// read-roots (superset of allow-roots), refusing files larger than
// maxBytes when maxBytes > 0.
func (m *DiskManager) ReadFile(userID, path string, maxBytes int64) ([]byte, error) {
	roots, err := m.Roots(userID)
	if err != nil {
		return nil, err
	}
	abs, err := pathfs.Resolve(path, roots, true)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "stat file %s", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, coreerr.New(coreerr.PathForbidden, "file %s exceeds the %d byte read bound", path, maxBytes)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "read file %s", path)
	}
	return data, nil
}

// MarkTreeDirty records that the user's workspace tree changed (e.g.
// after a skill ran). Consumers (a file-tree cache, an LSP touch) poll
// this via a future extension point; this reference Manager just tracks
// the flag.
func (m *DiskManager) MarkTreeDirty(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty[userID] = true
}

// BumpVersion increments and returns the user's workspace version counter.
func (m *DiskManager) BumpVersion(userID string) int64 {
	m.mu.Lock()
	v, ok := m.versions[userID]
	if !ok {
		v = &atomic.Int64{}
		m.versions[userID] = v
	}
	m.mu.Unlock()
	return v.Add(1)
}

// DisplayPath renders path relative to the user's workspace root for
// human-facing output, falling back to the absolute path if it isn't
// under the root.
func (m *DiskManager) DisplayPath(userID, path string) string {
	root, err := m.WorkspaceRoot(userID)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || len(rel) >= 2 && rel[:2] == ".." {
		return path
	}
	return rel
}

// AppendToolLog records a tool-invocation payload for later inspection
// (e.g. by an audit UI). This reference Manager keeps it in memory.
func (m *DiskManager) AppendToolLog(userID string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolLog[userID] = append(m.toolLog[userID], payload)
}

// ToolLog returns a copy of the recorded tool-invocation payloads for userID.
func (m *DiskManager) ToolLog(userID string) []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.toolLog[userID]))
	copy(out, m.toolLog[userID])
	return out
}

// IsDirty reports whether MarkTreeDirty has ever been called for userID;
// the flag is never cleared (tests/observability only).
func (m *DiskManager) IsDirty(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty[userID]
}

var _ Manager = (*DiskManager)(nil)
