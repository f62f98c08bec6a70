// Package tool implements the built-in tool set, the tool
// dispatcher, and the request-scoped ToolContext/ToolRoots data
// model that wires the workspace, LSP, MCP, A2A, skill and
// knowledge collaborators together for one invocation.
package tool

import (
	"net/http"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/a2a"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/config"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/exec"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/knowledge"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/lsp"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/mcp"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/metrics"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/skill"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/workspace"
)

// EventEmitter is the streaming event contract, aliased from
// internal/exec so the runner and the dispatcher share one type instead
// of redefining structurally-identical interfaces.
type EventEmitter = exec.EventEmitter

// UserToolKind discriminates a user-tool binding's target collaborator
//.
type UserToolKind string

const (
	UserToolMCP       UserToolKind = "mcp"
	UserToolSkill     UserToolKind = "skill"
	UserToolKnowledge UserToolKind = "knowledge"
)

// UserToolBinding is one entry of a caller's alias table: an alias name
// the dispatcher resolves before falling through to the built-in chain.
type UserToolBinding struct {
	Kind   UserToolKind
	Target string // "<server>@<tool>" for MCP, skill name for Skill, knowledge base name for Knowledge
	Owner  string // skill-registry owner scope, when Kind == UserToolSkill
}

// ToolContext is the request-scoped, borrowed collaborator bundle.
// Its lifetime is one tool invocation; nothing here is owned by the
// tool package.
type ToolContext struct {
	UserID      string
	WorkspaceID string
	SessionID   string

	Config *config.Snapshot

	Workspace workspace.Manager
	LSP       *lsp.Manager
	MCP       *mcp.Manager
	A2A       *a2a.Manager
	Skills    *skill.Registry
	Knowledge *knowledge.Router

	ExecRunner     *exec.Runner
	ExecMode       exec.Mode
	ApprovalCache  *exec.ApprovalCache
	UserToolAlias  map[string]UserToolBinding
	MCPServersByOwner map[string]map[string]config.MCPServer

	Emitter EventEmitter
	HTTP    *http.Client
	Metrics *metrics.Metrics
}
