package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

func TestExecute_BuiltinByCanonicalName(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := Execute(context.Background(), tc, toolFinalReply, map[string]any{"content": "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", out["answer"])
}

func TestExecute_BuiltinByEnglishAlias(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := Execute(context.Background(), tc, "final_reply", map[string]any{"content": "done"})
	require.NoError(t, err)
	assert.Equal(t, "done", out["answer"])
}

func TestExecute_UnknownToolIsUnsupported(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := Execute(context.Background(), tc, "does_not_exist", map[string]any{})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.Unsupported))
}

func TestExecute_MCPRoutingWithoutConfiguredManager(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := Execute(context.Background(), tc, "github@list_issues", map[string]any{})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.ConfigurationError))
}

func TestExecute_A2ASendWithoutConfiguredManager(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := Execute(context.Background(), tc, "a2a@researcher", map[string]any{"content": "hi"})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.ConfigurationError))
}

func TestExecute_UserToolBindingOverridesSkillLookup(t *testing.T) {
	tc := newTestContext(t, "alice")
	tc.UserToolAlias = map[string]UserToolBinding{
		"notify": {Kind: UserToolMCP, Target: "slack@post_message"},
	}
	_, err := Execute(context.Background(), tc, "notify", map[string]any{})
	require.Error(t, err)
	// Resolves through the MCP path (manager unconfigured), not "unsupported".
	assert.True(t, coreerr.Has(err, coreerr.ConfigurationError))
}

func TestSplitMCPName(t *testing.T) {
	server, toolName, ok := splitMCPName("github@list_issues")
	require.True(t, ok)
	assert.Equal(t, "github", server)
	assert.Equal(t, "list_issues", toolName)

	_, _, ok = splitMCPName("a2a@researcher")
	assert.False(t, ok, "a2a@ prefix is reserved for A2A routing, not MCP")

	_, _, ok = splitMCPName(toolFinalReply)
	assert.False(t, ok)
}
