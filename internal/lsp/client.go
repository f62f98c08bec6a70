package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// Diagnostic mirrors LSP's Diagnostic shape closely enough for callers
// (the knowledge/tool layers never need more than range+message+severity).
type Diagnostic struct {
	Range    json.RawMessage `json:"range"`
	Severity int             `json:"severity,omitempty"`
	Code     json.RawMessage `json:"code,omitempty"`
	Source   string          `json:"source,omitempty"`
	Message  string          `json:"message"`
}

// ClientKey identifies one long-lived server process.
type ClientKey struct {
	UserID        string
	CanonicalRoot string
	ServerID      string
}

const outboundQueueCapacity = 256

// Client is one spawned language server subprocess with its reader/
// writer goroutines, pending request table and diagnostics store.
type Client struct {
	key     ClientKey
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	outbox  chan []byte
	alive   atomic.Bool
	lastUse atomic.Int64 // unix nanos
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[string]chan *rpcMessage

	diagMu      sync.Mutex
	diagnostics map[string][]Diagnostic

	versionMu    sync.Mutex
	fileVersions map[string]int

	subMu sync.Mutex
	subs  map[chan string]struct{}

	requestTimeout time.Duration
}

// NewClient wires a freshly started subprocess into a Client; callers
// must invoke Start after construction.
func NewClient(key ClientKey, cmd *exec.Cmd, stdin io.WriteCloser, requestTimeout time.Duration) *Client {
	c := &Client{
		key:            key,
		cmd:            cmd,
		stdin:          stdin,
		outbox:         make(chan []byte, outboundQueueCapacity),
		pending:        make(map[string]chan *rpcMessage),
		diagnostics:    make(map[string][]Diagnostic),
		fileVersions:   make(map[string]int),
		subs:           make(map[chan string]struct{}),
		requestTimeout: requestTimeout,
	}
	c.alive.Store(true)
	c.touch()
	return c
}

func (c *Client) touch() { c.lastUse.Store(timeNowUnixNano()) }

// Alive reports whether the client's I/O goroutines are still running.
func (c *Client) Alive() bool { return c.alive.Load() }

// ID returns the server id this client was spawned for, used to label
// per-server results in the LSP query built-in.
func (c *Client) ID() string { return c.key.ServerID }

func (c *Client) LastUsed() time.Time {
	return time.Unix(0, c.lastUse.Load())
}

// RunWriter drains the outbound queue onto stdin, framing each message.
// Any write error flips alive=false and exits.
func (c *Client) RunWriter() {
	for body := range c.outbox {
		if err := writeFrame(c.stdin, body); err != nil {
			c.alive.Store(false)
			return
		}
	}
}

// RunReader parses framed messages from stdout until EOF or a parse
// failure, dispatching each.
func (c *Client) RunReader(stdout io.Reader, onServerRequest func(method string, params json.RawMessage) (json.RawMessage, bool)) {
	r := bufio.NewReader(stdout)
	for {
		body, err := readFrame(r)
		if err != nil {
			c.alive.Store(false)
			return
		}
		var msg rpcMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			c.alive.Store(false)
			return
		}
		c.handleIncoming(msg, onServerRequest)
	}
}

func (c *Client) handleIncoming(msg rpcMessage, onServerRequest func(string, json.RawMessage) (json.RawMessage, bool)) {
	switch {
	case msg.Method == "textDocument/publishDiagnostics" && msg.ID == nil:
		c.handleDiagnostics(msg.Params)
	case msg.Method != "" && msg.ID != nil:
		// Server-initiated request; reply synchronously with a minimal result.
		result, handled := onServerRequest(msg.Method, msg.Params)
		if !handled {
			result = json.RawMessage("null")
		}
		reply := rpcMessage{JSONRPC: "2.0", ID: msg.ID, Result: result}
		if body, err := json.Marshal(reply); err == nil {
			c.enqueue(body)
		}
	case msg.Method != "" && msg.ID == nil:
		// Other notifications are ignored; not part of spec scope.
	case msg.ID != nil:
		c.deliver(msg)
	}
}

type publishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (c *Client) handleDiagnostics(raw json.RawMessage) {
	var params publishDiagnosticsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	path := uriToPath(params.URI)

	c.diagMu.Lock()
	c.diagnostics[path] = params.Diagnostics
	c.diagMu.Unlock()

	c.broadcast(path)
}

func (c *Client) deliver(msg rpcMessage) {
	key := normalizeID(msg.ID)
	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	// Non-blocking: a dropped receiver (cancelled caller) discards
	// the response silently.
	select {
	case ch <- &msg:
	default:
	}
}

func (c *Client) enqueue(body []byte) {
	c.outbox <- body
}

// Request sends a JSON-RPC request and waits for its response, bounded
// by the client's requestTimeout.
func (c *Client) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.touch()
	id := c.nextID.Add(1)
	idBytes := []byte(strconv.FormatInt(id, 10))

	paramsBody, err := json.Marshal(params)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "marshal params for %s", method)
	}

	msg := rpcMessage{JSONRPC: "2.0", ID: idBytes, Method: method, Params: paramsBody}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "marshal request %s", method)
	}

	ch := make(chan *rpcMessage, 1)
	key := normalizeID(idBytes)
	c.mu.Lock()
	c.pending[key] = ch
	c.mu.Unlock()

	select {
	case c.outbox <- body:
	case <-ctx.Done():
		c.removePending(key)
		return nil, coreerr.Wrap(coreerr.Timeout, ctx.Err(), "enqueue request %s", method)
	}

	timeout := c.requestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply.Error != nil {
			return nil, coreerr.New(coreerr.ProtocolError, "%s", reply.Error.Error())
		}
		return reply.Result, nil
	case <-timer.C:
		c.removePending(key)
		return nil, coreerr.New(coreerr.Timeout, "lsp request %s timed out after %s", method, timeout)
	case <-ctx.Done():
		c.removePending(key)
		return nil, coreerr.Wrap(coreerr.Timeout, ctx.Err(), "lsp request %s cancelled", method)
	}
}

func (c *Client) removePending(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

// Notify sends a JSON-RPC notification (no id, no response expected).
func (c *Client) Notify(method string, params any) error {
	c.touch()
	paramsBody, err := json.Marshal(params)
	if err != nil {
		return coreerr.Wrap(coreerr.ProtocolError, err, "marshal params for %s", method)
	}
	msg := rpcMessage{JSONRPC: "2.0", Method: method, Params: paramsBody}
	body, err := json.Marshal(msg)
	if err != nil {
		return coreerr.Wrap(coreerr.ProtocolError, err, "marshal notification %s", method)
	}
	select {
	case c.outbox <- body:
		return nil
	default:
		return coreerr.New(coreerr.TransportError, "lsp outbound queue full for %s", method)
	}
}

// Diagnostics returns a snapshot of diagnostics for path.
func (c *Client) Diagnostics(path string) []Diagnostic {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	return append([]Diagnostic(nil), c.diagnostics[path]...)
}

// Subscribe registers a channel that receives the canonical path of
// every file whose diagnostics were just updated.
func (c *Client) Subscribe() (ch chan string, cancel func()) {
	ch = make(chan string, 8)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()
	return ch, func() {
		c.subMu.Lock()
		delete(c.subs, ch)
		c.subMu.Unlock()
	}
}

func (c *Client) broadcast(path string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- path:
		default:
		}
	}
}

// BumpOrOpenVersion does the open_file version bookkeeping,
// returning the new version and whether this is the file's first open.
func (c *Client) BumpOrOpenVersion(path string) (version int, firstOpen bool) {
	c.versionMu.Lock()
	defer c.versionMu.Unlock()
	v, ok := c.fileVersions[path]
	if !ok {
		c.fileVersions[path] = 0
		return 0, true
	}
	v++
	c.fileVersions[path] = v
	return v, false
}

// Shutdown runs the teardown sequence: mark dead, best-effort
// shutdown request, exit notification, then kill the subprocess.
func (c *Client) Shutdown() {
	c.alive.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = c.Request(ctx, "shutdown", map[string]any{})
	_ = c.Notify("exit", nil)

	close(c.outbox)
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

func uriToPath(uri string) string {
	const prefix = "file://"
	if len(uri) > len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}

func pathToURI(path string) string {
	return "file://" + path
}
