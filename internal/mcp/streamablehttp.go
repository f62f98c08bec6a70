package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/httpx"
)

// streamableHTTPSession drives the Streamable-HTTP transport: JSON-RPC
// POSTs, tolerating a `text/event-stream` response body for a single
// reply, and tracking
// the `mcp-session-id` response header across calls.
type streamableHTTPSession struct {
	client  *httpx.Client
	cfg     ServerConfig
	headers map[string]string

	nextID int64

	mu        sync.RWMutex
	sessionID string
}

func newStreamableHTTPSession(client *httpx.Client, cfg ServerConfig, headers map[string]string) *streamableHTTPSession {
	return &streamableHTTPSession{client: client, cfg: cfg, headers: headers}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// jsonRPCNotification is a JSON-RPC 2.0 request with no "id": a
// conforming server must not reply to it.
type jsonRPCNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorObj    `json:"error,omitempty"`
}

// UnmarshalJSON accepts a string or a number id; a number is kept in its
// decimal text form, matching the stringified ids this client sends.
func (r *jsonRPCResponse) UnmarshalJSON(data []byte) error {
	type plain jsonRPCResponse
	var raw struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = jsonRPCResponse(raw.plain)
	if err := json.Unmarshal(raw.ID, &r.ID); err != nil {
		r.ID = string(raw.ID)
	}
	return nil
}

type rpcErrorObj struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *streamableHTTPSession) call(ctx context.Context, method string, params any) (*jsonRPCResponse, error) {
	id := strconv.FormatInt(atomic.AddInt64(&s.nextID, 1), 10)
	req := jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "marshal mcp request %s", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "build mcp request %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}

	s.mu.RLock()
	sessionID := s.sessionID
	s.mu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("mcp-session-id", sessionID)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "mcp request %s to %s", method, s.cfg.Endpoint)
	}
	defer httpResp.Body.Close()

	if newSessionID := httpResp.Header.Get("mcp-session-id"); newSessionID != "" {
		s.mu.Lock()
		s.sessionID = newSessionID
		s.mu.Unlock()
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, coreerr.New(coreerr.TransportError, "mcp server %s returned HTTP %d: %s", s.cfg.Name, httpResp.StatusCode, string(respBody))
	}

	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		return readFirstSSEMessage(httpResp.Body)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "read mcp response body for %s", method)
	}
	var resp jsonRPCResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode mcp response for %s", method)
	}
	return &resp, nil
}

// notify sends a JSON-RPC notification: no "id" field, and no reply is
// awaited. Per JSON-RPC 2.0, a conforming server never answers a
// notification (Streamable-HTTP servers typically reply with a bodyless
// 202), so this must not reuse call's id-and-wait machinery.
func (s *streamableHTTPSession) notify(ctx context.Context, method string, params any) error {
	req := jsonRPCNotification{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return coreerr.Wrap(coreerr.ProtocolError, err, "marshal mcp notification %s", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "build mcp notification %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}

	s.mu.RLock()
	sessionID := s.sessionID
	s.mu.RUnlock()
	if sessionID != "" {
		httpReq.Header.Set("mcp-session-id", sessionID)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return coreerr.Wrap(coreerr.TransportError, err, "mcp notification %s to %s", method, s.cfg.Endpoint)
	}
	defer httpResp.Body.Close()

	if newSessionID := httpResp.Header.Get("mcp-session-id"); newSessionID != "" {
		s.mu.Lock()
		s.sessionID = newSessionID
		s.mu.Unlock()
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(httpResp.Body)
		return coreerr.New(coreerr.TransportError, "mcp server %s returned HTTP %d for notification %s: %s", s.cfg.Name, httpResp.StatusCode, method, string(respBody))
	}
	return nil
}

// readFirstSSEMessage reads the first complete "data:" event from an
// SSE-content-typed POST response body.
func readFirstSSEMessage(body io.Reader) (*jsonRPCResponse, error) {
	reader := bufio.NewReader(body)
	var data strings.Builder
	for {
		line, err := reader.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" && data.Len() > 0 {
			var resp jsonRPCResponse
			if jsonErr := json.Unmarshal([]byte(data.String()), &resp); jsonErr == nil {
				return &resp, nil
			}
			data.Reset()
		}
		if strings.HasPrefix(trimmed, "data:") {
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(trimmed, "data:")))
		}
		if err != nil {
			if data.Len() > 0 {
				var resp jsonRPCResponse
				if jsonErr := json.Unmarshal([]byte(data.String()), &resp); jsonErr == nil {
					return &resp, nil
				}
			}
			return nil, coreerr.New(coreerr.ProtocolError, "mcp sse response ended without a complete message")
		}
	}
}

func (s *streamableHTTPSession) initialize(ctx context.Context) error {
	resp, err := s.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "wunder-sub004", "version": "1.0.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return coreerr.New(coreerr.ProtocolError, "mcp initialize error: %s", resp.Error.Message)
	}
	if err := s.notify(ctx, "notifications/initialized", map[string]any{}); err != nil {
		return fmt.Errorf("mcp initialized notification: %w", err)
	}
	return nil
}

func (s *streamableHTTPSession) listTools(ctx context.Context) ([]ToolSpec, error) {
	resp, err := s.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, coreerr.New(coreerr.ProtocolError, "mcp tools/list error: %s", resp.Error.Message)
	}

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode tools/list result")
	}

	specs := make([]ToolSpec, 0, len(result.Tools))
	for _, t := range result.Tools {
		specs = append(specs, ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return specs, nil
}

func (s *streamableHTTPSession) callTool(ctx context.Context, tool string, args json.RawMessage) (*CallResult, error) {
	argsValue := normalizeArguments(args)
	resp, err := s.call(ctx, "tools/call", map[string]any{"name": tool, "arguments": argsValue})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, coreerr.New(coreerr.ProtocolError, "mcp tools/call error: %s", resp.Error.Message)
	}
	return normalizeCallResult(resp.Result)
}
