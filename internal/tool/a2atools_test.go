package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestA2AObserve_WithoutManagerReturnsEmpty(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := a2aObserve(context.Background(), tc, map[string]any{})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
	assert.Empty(t, out["tasks"])
}

func TestA2AWait_WithoutManagerReturnsDoneImmediately(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := a2aWait(context.Background(), tc, map[string]any{"wait_s": 5})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
	assert.True(t, out["done"].(bool))
}

func TestParseObserveArgs_RefreshDefaultsToNilWhenOmitted(t *testing.T) {
	args := parseObserveArgs(map[string]any{"task_ids": []any{"t1", "t2"}})
	assert.Equal(t, []string{"t1", "t2"}, args.TaskIDs)
	assert.Nil(t, args.Refresh)
}

func TestParseObserveArgs_RefreshFalseIsHonored(t *testing.T) {
	args := parseObserveArgs(map[string]any{"refresh": false})
	require.NotNil(t, args.Refresh)
	assert.False(t, *args.Refresh)
}

func TestToStringSlice_IgnoresNonStringEntries(t *testing.T) {
	out := toStringSlice([]any{"a", 2, "b", nil})
	assert.Equal(t, []string{"a", "b"}, out)
}
