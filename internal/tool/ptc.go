package tool

import (
	"context"
	"path/filepath"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

const ptcDefaultFilename = "ptc.tmp"

// ptcCall is the programmatic-tool-call built-in: it stages `content`
// as a script file named `filename` under `workdir`, distinct from
// shell execution. The same policy gate as execute_command applies, on
// the same command-text argument, since the staged script is what a
// follow-up invocation runs.
func ptcCall(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return nil, coreerr.New(coreerr.PathRequired, "ptc requires content")
	}

	if tc.Config != nil && tc.Config.Security.SandboxEnabled {
		// Sandboxed execution is delegated verbatim to an external
		// collaborator that is out of scope for this core.
		tc.Workspace.MarkTreeDirty(tc.UserID)
		return map[string]any{"ok": false, "error": "sandbox execution is delegated to an external collaborator"}, nil
	}

	if decision := evaluateExecPolicy(tc, args, content, toolPTC); decision != nil {
		tc.Metrics.SetApprovalCacheSize(firstNonEmpty(tc.SessionID, tc.UserID), tc.ApprovalCache.Len())
		if !decision.Allowed {
			return map[string]any{
				"ok":                false,
				"allowed":           false,
				"requires_approval": decision.RequiresApproval,
				"reason":            decision.Reason,
			}, nil
		}
	}

	filename, _ := args["filename"].(string)
	if filename == "" {
		filename = ptcDefaultFilename
	}

	workdir, _ := args["workdir"].(string)
	var (
		dir string
		err error
	)
	if workdir == "" {
		dir, err = tc.Workspace.EnsureUserRoot(tc.UserID)
	} else {
		dir, err = tc.Workspace.ResolvePath(tc.UserID, workdir)
	}
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, filename)
	if err := tc.Workspace.WriteFile(tc.UserID, path, content, true); err != nil {
		return nil, err
	}
	tc.Workspace.MarkTreeDirty(tc.UserID)

	return map[string]any{
		"ok":   true,
		"data": map[string]any{"path": tc.Workspace.DisplayPath(tc.UserID, path)},
	}, nil
}
