package exec

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	enabled bool
	events  []map[string]any
}

func (f *fakeEmitter) Emit(eventType string, payload map[string]any) {
	payload["event"] = eventType
	f.events = append(f.events, payload)
}

func (f *fakeEmitter) StreamEnabled() bool { return f.enabled }

func TestRunSingleCommandSucceeds(t *testing.T) {
	r := NewRunner(0, nil)
	res, err := r.Run(context.Background(), RunRequest{Content: "echo hello", AllowList: []string{"*"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Len(t, res.Results, 1)
	require.Equal(t, 0, res.Results[0].ReturnCode)
	require.Equal(t, "hello\n", res.Results[0].Stdout)
}

func TestRunMultiLineShortCircuitsOnFailure(t *testing.T) {
	r := NewRunner(0, nil)
	res, err := r.Run(context.Background(), RunRequest{Content: "echo one\nfalse\necho two", AllowList: []string{"*"}})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Len(t, res.Results, 2)
	require.Equal(t, "one\n", res.Results[0].Stdout)
	require.NotEqual(t, 0, res.Results[1].ReturnCode)
}

func TestRunTimesOut(t *testing.T) {
	// S5: "sleep 5" with timeout_s:1 synthesizes a timeout stderr and -1 rc.
	r := NewRunner(0, nil)
	res, err := r.Run(context.Background(), RunRequest{Content: "sleep 5", TimeoutS: 1, AllowList: []string{"*"}})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Len(t, res.Results, 1)
	require.Equal(t, -1, res.Results[0].ReturnCode)
	require.Contains(t, res.Results[0].Stderr, "timeout after 1s")
}

func TestRunAllowListRejectsUnlistedCommand(t *testing.T) {
	r := NewRunner(0, nil)
	_, err := r.Run(context.Background(), RunRequest{Content: "rm -rf /tmp/x", AllowList: []string{"echo", "ls"}})
	require.Error(t, err)
}

func TestRunAllowListWildcardPermitsAnything(t *testing.T) {
	r := NewRunner(0, nil)
	res, err := r.Run(context.Background(), RunRequest{Content: "echo ok", AllowList: []string{"*"}})
	require.NoError(t, err)
	require.True(t, res.OK)
}

func TestRunEmitsStreamedChunksReconstructingOutput(t *testing.T) {
	emitter := &fakeEmitter{enabled: true}
	r := NewRunner(4, emitter)
	res, err := r.Run(context.Background(), RunRequest{Content: "echo hello-world", ToolName: "execute_command", AllowList: []string{"*"}})
	require.NoError(t, err)
	require.True(t, res.OK)

	var rebuilt strings.Builder
	for _, ev := range emitter.events {
		if ev["stream"] == "stdout" {
			rebuilt.WriteString(ev["delta"].(string))
		}
	}
	require.Equal(t, res.Results[0].Stdout, rebuilt.String())
}

func TestRunEnvAssignmentsApply(t *testing.T) {
	r := NewRunner(0, nil)
	res, err := r.Run(context.Background(), RunRequest{Content: "FOO=bar sh -c 'echo $FOO'", AllowList: []string{"*"}})
	require.NoError(t, err)
	require.Equal(t, "bar\n", res.Results[0].Stdout)
}

func TestAllowListPermitsEmptyListRejectsEverything(t *testing.T) {
	require.False(t, allowListPermits(nil, "anything goes"))
}

func TestRunRejectsEverythingWithEmptyAllowList(t *testing.T) {
	r := NewRunner(0, nil)
	_, err := r.Run(context.Background(), RunRequest{Content: "echo hello"})
	require.Error(t, err)
}

func TestExtractLeadingEnv(t *testing.T) {
	env, rest := extractLeadingEnv("FOO=bar BAZ=1 echo hi")
	require.Equal(t, []string{"FOO=bar", "BAZ=1"}, env)
	require.Equal(t, "echo hi", rest)
}

func TestExtractLeadingEnvNoneFound(t *testing.T) {
	env, rest := extractLeadingEnv("echo hi")
	require.Nil(t, env)
	require.Equal(t, "echo hi", rest)
}
