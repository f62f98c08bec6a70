package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/exec"
)

func TestExecCommand_RunsAllowedCommand(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := execCommand(context.Background(), tc, map[string]any{"content": "echo hello"})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))

	results := out["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0]["return_code"])
}

func TestExecCommand_RequiresNonEmptyContent(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := execCommand(context.Background(), tc, map[string]any{"content": "   "})
	require.Error(t, err)
}

func TestExecCommand_EnforceModeRequiresApprovalForHighRiskCommand(t *testing.T) {
	tc := newTestContext(t, "alice")
	tc.ExecMode = exec.ModeEnforce

	out, err := execCommand(context.Background(), tc, map[string]any{"content": "rm -rf /tmp/whatever"})
	require.NoError(t, err)
	assert.False(t, out["ok"].(bool))
	assert.False(t, out["allowed"].(bool))
	assert.True(t, out["requires_approval"].(bool))
}

func TestExecCommand_ApprovedHighRiskCommandRunsInEnforceMode(t *testing.T) {
	tc := newTestContext(t, "alice")
	tc.ExecMode = exec.ModeEnforce

	out, err := execCommand(context.Background(), tc, map[string]any{
		"content":  "echo rm -rf staged",
		"approved": true,
	})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
}

func TestExecCommand_SandboxEnabledShortCircuits(t *testing.T) {
	tc := newTestContext(t, "alice")
	tc.Config.Security.SandboxEnabled = true

	out, err := execCommand(context.Background(), tc, map[string]any{"content": "echo hi"})
	require.NoError(t, err)
	assert.False(t, out["ok"].(bool))
	assert.Contains(t, out["error"].(string), "sandbox")
}

func TestResolveWorkdir_DefaultsToWorkspaceRoot(t *testing.T) {
	tc := newTestContext(t, "alice")
	dir, err := resolveWorkdir(tc, map[string]any{})
	require.NoError(t, err)
	assert.NotEmpty(t, dir)
}

func TestResolveWorkdir_RejectsNonExistentDirectory(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := resolveWorkdir(tc, map[string]any{"workdir": "no/such/dir"})
	require.Error(t, err)
}
