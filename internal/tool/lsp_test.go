package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

func TestLSPQuery_WithoutManagerReturnsEmptyResults(t *testing.T) {
	tc := newTestContext(t, "alice")
	out, err := lspQuery(context.Background(), tc, map[string]any{"operation": "hover"})
	require.NoError(t, err)
	assert.True(t, out["ok"].(bool))
	assert.Empty(t, out["results"])
}

func TestLSPQuery_RejectsUnknownOperation(t *testing.T) {
	tc := newTestContext(t, "alice")
	_, err := lspQuery(context.Background(), tc, map[string]any{"operation": "rename"})
	require.Error(t, err)
	assert.True(t, coreerr.Has(err, coreerr.Unsupported))
}

func TestLSPMethod_MapsEveryKnownOperation(t *testing.T) {
	for op := range lspOperations {
		assert.NotEmpty(t, lspMethod(op), "operation %q should map to a JSON-RPC method", op)
	}
	assert.Empty(t, lspMethod("unknown"))
}

func TestLSPTouch_NoopWithoutManager(t *testing.T) {
	tc := newTestContext(t, "alice")
	// Must not panic when tc.LSP is nil.
	lspTouch(context.Background(), tc, "notes.txt", "hello")
}
