package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateBypassesNonHighRisk(t *testing.T) {
	cache := NewApprovalCache()
	d := Evaluate(ModeEnforce, CallArgs{Command: "ls -la", SessionID: "s1"}, "execute_command", cache)
	require.Nil(t, d)
}

func TestEvaluateEnforceRequiresApproval(t *testing.T) {
	// S3 step 1: enforce mode, no approval -> allowed=false, requires_approval=true.
	cache := NewApprovalCache()
	d := Evaluate(ModeEnforce, CallArgs{Command: "rm -rf /tmp/x", SessionID: "s1"}, "execute_command", cache)
	require.NotNil(t, d)
	require.False(t, d.Allowed)
	require.True(t, d.RequiresApproval)
	require.Equal(t, "high_risk_command", d.Reason)
}

func TestEvaluateApprovalCacheHit(t *testing.T) {
	// S3 steps 2-3: explicit approval, then cache hit within TTL.
	cache := NewApprovalCache()
	args := CallArgs{Command: "rm -rf /tmp/x", SessionID: "s1", Approved: true}
	d := Evaluate(ModeEnforce, args, "execute_command", cache)
	require.True(t, d.Allowed)

	argsNoApproval := CallArgs{Command: "rm -rf /tmp/x", SessionID: "s1"}
	d2 := Evaluate(ModeEnforce, argsNoApproval, "execute_command", cache)
	require.True(t, d2.Allowed)
	require.False(t, d2.RequiresApproval)
}

func TestEvaluateApprovalTokenCounts(t *testing.T) {
	cache := NewApprovalCache()
	d := Evaluate(ModeEnforce, CallArgs{Command: "rm -rf /x", SessionID: "s1", ApprovalToken: "tok123"}, "execute_command", cache)
	require.True(t, d.Allowed)
}

func TestEvaluateAuditModeAllowsButFlags(t *testing.T) {
	cache := NewApprovalCache()
	d := Evaluate(ModeAudit, CallArgs{Command: "rm -rf /x", SessionID: "s1"}, "execute_command", cache)
	require.True(t, d.Allowed)
	require.True(t, d.RequiresApproval)
}

func TestEvaluateAllowModeNeverRequiresApproval(t *testing.T) {
	cache := NewApprovalCache()
	d := Evaluate(ModeAllow, CallArgs{Command: "rm -rf /x", SessionID: "s1"}, "execute_command", cache)
	require.True(t, d.Allowed)
	require.False(t, d.RequiresApproval)
}

func TestSessionKeyFallsBackToUserID(t *testing.T) {
	cache := NewApprovalCache()
	d := Evaluate(ModeEnforce, CallArgs{Command: "rm -rf /x", UserID: "u1", Approved: true}, "execute_command", cache)
	require.True(t, d.Allowed)

	d2 := Evaluate(ModeEnforce, CallArgs{Command: "rm -rf /x", UserID: "u1"}, "execute_command", cache)
	require.True(t, d2.Allowed)
}

func TestApprovalCacheExpiresEntries(t *testing.T) {
	cache := NewApprovalCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	cache.Remember("s1", "execute_command", "rm -rf /x")
	require.True(t, cache.Hit("s1", "execute_command", "rm -rf /x"))

	cache.clock = func() time.Time { return now.Add(700 * time.Second) }
	require.False(t, cache.Hit("s1", "execute_command", "rm -rf /x"))
	require.Equal(t, 0, cache.Len())
}
