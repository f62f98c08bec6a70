package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/httpx"
)

// sseSession is the hand-rolled SSE transport: a long-lived
// GET stream whose first `endpoint` event supplies the POST URL for
// outgoing requests, after which `message` events carry JSON-RPC
// server replies, line-buffered and correlated by id.
type sseSession struct {
	client  *httpx.Client
	cfg     ServerConfig
	headers map[string]string
	base    *url.URL

	nextID int64

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error
	postURL   string

	mu      sync.Mutex
	pending map[string]chan *jsonRPCResponse

	timeout time.Duration
}

func newSSESession(client *httpx.Client, cfg ServerConfig, headers map[string]string, timeout time.Duration) (*sseSession, error) {
	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ConfigurationError, err, "parse mcp sse endpoint %q", cfg.Endpoint)
	}
	return &sseSession{
		client:  client,
		cfg:     cfg,
		headers: headers,
		base:    base,
		ready:   make(chan struct{}),
		pending: make(map[string]chan *jsonRPCResponse),
		timeout: timeout,
	}, nil
}

// connect opens the SSE stream and blocks until the `endpoint` event
// arrives (or ctx is cancelled); the read loop continues in the
// background for the session's lifetime.
func (s *sseSession) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.cfg.Endpoint, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "build mcp sse request")
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "open mcp sse stream to %s", s.cfg.Endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return coreerr.New(coreerr.TransportError, "mcp sse server %s returned HTTP %d: %s", s.cfg.Name, resp.StatusCode, string(body))
	}

	go s.readLoop(resp.Body)

	select {
	case <-s.ready:
		return s.readyErr
	case <-ctx.Done():
		return coreerr.Wrap(coreerr.Timeout, ctx.Err(), "mcp sse endpoint event not received from %s", s.cfg.Name)
	}
}

func (s *sseSession) readLoop(body io.ReadCloser) {
	defer body.Close()
	reader := bufio.NewReader(body)

	var eventName string
	var data bytes.Buffer

	dispatch := func() {
		defer func() { eventName = ""; data.Reset() }()
		if data.Len() == 0 {
			return
		}
		switch eventName {
		case "endpoint":
			s.handleEndpointEvent(strings.TrimSpace(data.String()))
		default:
			// "message" and unnamed events both carry JSON-RPC replies.
			var resp jsonRPCResponse
			if err := json.Unmarshal(data.Bytes(), &resp); err == nil {
				s.deliver(&resp)
			}
		}
	}

	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		switch {
		case trimmed == "":
			dispatch()
		case strings.HasPrefix(trimmed, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(trimmed, "event:"))
		case strings.HasPrefix(trimmed, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
		}
		if err != nil {
			dispatch()
			s.failAllPending()
			s.readyOnce.Do(func() {
				s.readyErr = coreerr.New(coreerr.TransportError, "mcp sse stream closed before endpoint event")
				close(s.ready)
			})
			return
		}
	}
}

func (s *sseSession) handleEndpointEvent(raw string) {
	resolved, err := s.base.Parse(raw)
	if err != nil {
		s.readyOnce.Do(func() {
			s.readyErr = coreerr.Wrap(coreerr.ProtocolError, err, "parse mcp sse endpoint url %q", raw)
			close(s.ready)
		})
		return
	}
	if resolved.Scheme != s.base.Scheme || resolved.Host != s.base.Host {
		s.readyOnce.Do(func() {
			s.readyErr = coreerr.New(coreerr.ProtocolError, "mcp sse endpoint %q scheme/host mismatch with base %q", resolved, s.base)
			close(s.ready)
		})
		return
	}
	s.postURL = resolved.String()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *sseSession) deliver(resp *jsonRPCResponse) {
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()
	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

func (s *sseSession) failAllPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan *jsonRPCResponse)
	s.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (s *sseSession) call(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	id := strconv.FormatInt(atomic.AddInt64(&s.nextID, 1), 10)
	req := jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "marshal mcp sse request %s", method)
	}

	replyCh := make(chan *jsonRPCResponse, 1)
	s.mu.Lock()
	s.pending[id] = replyCh
	s.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.postURL, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "build mcp sse post for %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "post mcp sse request %s", method)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, coreerr.New(coreerr.TransportError, "mcp sse post to %s returned HTTP %d", s.cfg.Name, httpResp.StatusCode)
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-replyCh:
		if !ok {
			return nil, coreerr.New(coreerr.TransportError, "mcp sse stream closed while awaiting %s", method)
		}
		return resp, nil
	case <-timer.C:
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, coreerr.New(coreerr.Timeout, "mcp sse request %s timed out after %s", method, timeout)
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, coreerr.Wrap(coreerr.Timeout, ctx.Err(), "mcp sse request %s cancelled", method)
	}
}

// notify posts a JSON-RPC notification over the SSE session's POST
// channel: no "id" field, and no entry is registered in pending, so the
// call returns as soon as the POST is accepted rather than waiting on a
// reply a conforming server will never send.
func (s *sseSession) notify(ctx context.Context, method string, params any) error {
	req := jsonRPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return coreerr.Wrap(coreerr.ProtocolError, err, "marshal mcp sse notification %s", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.postURL, bytes.NewReader(body))
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "build mcp sse notification %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "post mcp sse notification %s", method)
	}
	httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return coreerr.New(coreerr.TransportError, "mcp sse post to %s returned HTTP %d for notification %s", s.cfg.Name, httpResp.StatusCode, method)
	}
	return nil
}

func (s *sseSession) initialize(ctx context.Context) error {
	resp, err := s.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "wunder-sub004", "version": "1.0.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return coreerr.New(coreerr.ProtocolError, "mcp sse initialize error: %s", resp.Error.Message)
	}
	if err := s.notify(ctx, "notifications/initialized", map[string]any{}); err != nil {
		return fmt.Errorf("mcp sse initialized notification: %w", err)
	}
	return nil
}

func (s *sseSession) listTools(ctx context.Context) ([]ToolSpec, error) {
	resp, err := s.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, coreerr.New(coreerr.ProtocolError, "mcp sse tools/list error: %s", resp.Error.Message)
	}
	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode mcp sse tools/list result")
	}
	specs := make([]ToolSpec, 0, len(result.Tools))
	for _, t := range result.Tools {
		specs = append(specs, ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return specs, nil
}

func (s *sseSession) callTool(ctx context.Context, tool string, args json.RawMessage) (*CallResult, error) {
	resp, err := s.call(ctx, "tools/call", map[string]any{"name": tool, "arguments": normalizeArguments(args)})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, coreerr.New(coreerr.ProtocolError, "mcp sse tools/call error: %s", resp.Error.Message)
	}
	return normalizeCallResult(resp.Result)
}
