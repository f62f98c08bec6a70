package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServerPipe wires a Client to an in-memory counterpart standing in
// for the subprocess, so tests exercise real framing without spawning.
type fakeServerPipe struct {
	toClient   *io.PipeWriter
	fromClient *io.PipeReader
	reader     *bufio.Reader
}

func newClientUnderTest(t *testing.T, timeout time.Duration) (*Client, *fakeServerPipe) {
	t.Helper()
	clientStdinR, clientStdinW := io.Pipe()   // client writes here; test reads as "fromClient"
	serverStdoutR, serverStdoutW := io.Pipe() // test writes here; client reads as its stdout

	client := NewClient(ClientKey{UserID: "u1", CanonicalRoot: "/ws", ServerID: "gopls"}, nil, clientStdinW, timeout)
	go client.RunWriter()
	go client.RunReader(serverStdoutR, func(method string, _ json.RawMessage) (json.RawMessage, bool) {
		return json.RawMessage("null"), true
	})

	pipe := &fakeServerPipe{toClient: serverStdoutW, fromClient: clientStdinR, reader: bufio.NewReader(clientStdinR)}
	return client, pipe
}

func (p *fakeServerPipe) readMessage(t *testing.T) rpcMessage {
	t.Helper()
	body, err := readFrame(p.reader)
	require.NoError(t, err)
	var msg rpcMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func (p *fakeServerPipe) send(t *testing.T, msg rpcMessage) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, writeFrame(p.toClient, body))
}

func TestClientRequestReceivesMatchingResponse(t *testing.T) {
	client, pipe := newClientUnderTest(t, time.Second)

	done := make(chan struct{})
	var result json.RawMessage
	var reqErr error
	go func() {
		result, reqErr = client.Request(context.Background(), "initialize", map[string]any{"processId": 1})
		close(done)
	}()

	req := pipe.readMessage(t)
	require.Equal(t, "initialize", req.Method)

	pipe.send(t, rpcMessage{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"capabilities":{}}`)})

	<-done
	require.NoError(t, reqErr)
	require.JSONEq(t, `{"capabilities":{}}`, string(result))
}

func TestClientRequestTimesOut(t *testing.T) {
	client, _ := newClientUnderTest(t, 50*time.Millisecond)
	_, err := client.Request(context.Background(), "hover", map[string]any{})
	require.Error(t, err)
}

func TestClientHandlesServerInitiatedRequest(t *testing.T) {
	_, pipe := newClientUnderTest(t, time.Second)
	pipe.send(t, rpcMessage{JSONRPC: "2.0", ID: json.RawMessage(`7`), Method: "workspace/configuration"})

	reply := pipe.readMessage(t)
	require.Equal(t, "7", normalizeID(reply.ID))
	require.Equal(t, "null", string(reply.Result))
}

func TestClientPublishDiagnosticsStoredAndBroadcast(t *testing.T) {
	client, pipe := newClientUnderTest(t, time.Second)
	ch, cancel := client.Subscribe()
	defer cancel()

	params, _ := json.Marshal(publishDiagnosticsParams{
		URI: "file:///ws/a.go",
		Diagnostics: []Diagnostic{{Message: "undeclared name: foo", Severity: 1}},
	})
	pipe.send(t, rpcMessage{JSONRPC: "2.0", Method: "textDocument/publishDiagnostics", Params: params})

	select {
	case path := <-ch:
		require.Equal(t, "/ws/a.go", path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for diagnostics broadcast")
	}

	diags := client.Diagnostics("/ws/a.go")
	require.Len(t, diags, 1)
	require.Equal(t, "undeclared name: foo", diags[0].Message)
}

func TestBumpOrOpenVersionFirstOpenThenIncrement(t *testing.T) {
	client, _ := newClientUnderTest(t, time.Second)
	v, first := client.BumpOrOpenVersion("/ws/a.go")
	require.True(t, first)
	require.Equal(t, 0, v)

	v2, first2 := client.BumpOrOpenVersion("/ws/a.go")
	require.False(t, first2)
	require.Equal(t, 1, v2)
}
