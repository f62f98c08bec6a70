package tool

import (
	"testing"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/config"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/exec"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/workspace"
)

// newTestContext builds a minimal ToolContext over a real DiskManager
// rooted at t.TempDir(), with every optional collaborator left nil so
// tests exercise exactly the backend they target.
func newTestContext(t *testing.T, userID string) *ToolContext {
	t.Helper()
	ws := workspace.NewDiskManager(t.TempDir(), nil)
	if _, err := ws.EnsureUserRoot(userID); err != nil {
		t.Fatalf("ensure user root: %v", err)
	}

	cfg := config.Defaults()
	cfg.Security.AllowCommands = []string{"*"}
	return &ToolContext{
		UserID:        userID,
		SessionID:     "sess-1",
		Config:        &cfg,
		Workspace:     ws,
		ExecRunner:    exec.NewRunner(0, nil),
		ExecMode:      exec.ModeAllow,
		ApprovalCache: exec.NewApprovalCache(),
	}
}
