package tool

import (
	"context"
	"os"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/exec"
)

// execCommand runs the exec
// policy gate ahead of the streaming command runner, refusing to
// spawn anything when the gate denies the call.
func execCommand(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	return runCommandTool(ctx, tc, args, toolExecCommand)
}

func runCommandTool(ctx context.Context, tc *ToolContext, args map[string]any, toolName string) (map[string]any, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return nil, coreerr.New(coreerr.PathRequired, "execute command requires non-empty content")
	}

	if tc.Config != nil && tc.Config.Security.SandboxEnabled {
		// Sandboxed execution is delegated verbatim to
		// an external collaborator that is out of scope for this core.
		return map[string]any{"ok": false, "error": "sandbox execution is delegated to an external collaborator"}, nil
	}

	if decision := evaluateExecPolicy(tc, args, content, toolName); decision != nil {
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

	workdir, err := resolveWorkdir(tc, args)
	if err != nil {
		return nil, err
	}

	req := exec.RunRequest{
		Content:   content,
		Workdir:   workdir,
		TimeoutS:  toInt(args["timeout_s"]),
		ToolName:  toolName,
		AllowList: tc.Config.Security.AllowCommands,
	}

	result, err := tc.ExecRunner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(result.Results))
	for _, r := range result.Results {
		results = append(results, map[string]any{
			"command":     r.Command,
			"stdout":      r.Stdout,
			"stderr":      r.Stderr,
			"return_code": r.ReturnCode,
		})
	}

	return map[string]any{"ok": result.OK, "results": results}, nil
}

func evaluateExecPolicy(tc *ToolContext, args map[string]any, content, toolName string) *exec.Decision {
	callArgs := exec.CallArgs{
		Command:       content,
		SessionID:     tc.SessionID,
		UserID:        tc.UserID,
		Approved:      truthy(args["approved"]),
		ApprovalToken: firstString(args["approval_key"], args["approval_token"], args["approval_id"]),
	}
	return exec.Evaluate(tc.ExecMode, callArgs, toolName, tc.ApprovalCache)
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func firstString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveWorkdir(tc *ToolContext, args map[string]any) (string, error) {
	raw, _ := args["workdir"].(string)
	var (
		dir string
		err error
	)
	if raw == "" {
		dir, err = tc.Workspace.WorkspaceRoot(tc.UserID)
	} else {
		dir, err = tc.Workspace.ResolvePath(tc.UserID, raw)
	}
	if err != nil {
		return "", err
	}

	info, statErr := os.Stat(dir)
	if statErr != nil || !info.IsDir() {
		return "", coreerr.New(coreerr.ConfigurationError, "workdir %q is not an existing directory", raw)
	}
	return dir, nil
}
