package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, r *http.Request) jsonRPCRequest {
	t.Helper()
	var req jsonRPCRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func writeJSONRPCResult(t *testing.T, w http.ResponseWriter, id string, result any) {
	t.Helper()
	resultBody, err := json.Marshal(result)
	require.NoError(t, err)
	resp := jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: resultBody}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestFetchToolsStreamableHTTPAndCachesWithinTTL(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		switch req.Method {
		case "initialize":
			writeJSONRPCResult(t, w, req.ID, map[string]any{"capabilities": map[string]any{}})
		case "notifications/initialized":
			writeJSONRPCResult(t, w, req.ID, map[string]any{})
		case "tools/list":
			atomic.AddInt32(&calls, 1)
			writeJSONRPCResult(t, w, req.ID, map[string]any{
				"tools": []map[string]any{{"name": "search", "description": "search the web"}},
			})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	mgr := NewManager("")
	cfg := ServerConfig{Name: "search-server", Endpoint: server.URL, Transport: "streamable-http", TimeoutS: 5}

	specs, err := mgr.FetchTools(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, "search", specs[0].Name)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	// S6: second call within TTL returns the cached list, no new round-trip.
	specs2, err := mgr.FetchTools(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, specs, specs2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCallToolStreamableHTTPNormalizesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		switch req.Method {
		case "initialize":
			writeJSONRPCResult(t, w, req.ID, map[string]any{})
		case "notifications/initialized":
			writeJSONRPCResult(t, w, req.ID, map[string]any{})
		case "tools/call":
			writeJSONRPCResult(t, w, req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": "42"}},
				"isError": false,
			})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer server.Close()

	mgr := NewManager("")
	cfg := ServerConfig{Name: "calc", Endpoint: server.URL, Transport: "http", TimeoutS: 5}

	result, err := mgr.CallTool(context.Background(), cfg, "add", json.RawMessage(`{"a":1,"b":41}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
}

func TestFetchToolsSSETransport(t *testing.T) {
	pushToStream := make(chan string, 8)

	mux := http.NewServeMux()
	var postPath string
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", postPath)
		flusher.Flush()
		for {
			select {
			case body := <-pushToStream:
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", body)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		w.WriteHeader(http.StatusAccepted)

		var result any
		switch req.Method {
		case "initialize", "notifications/initialized":
			result = map[string]any{}
		case "tools/list":
			result = map[string]any{"tools": []map[string]any{{"name": "lint"}}}
		}
		resultBody, _ := json.Marshal(result)
		resp := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: resultBody}
		body, _ := json.Marshal(resp)
		pushToStream <- string(body)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	postPath = server.URL + "/rpc"

	mgr := NewManager("")
	cfg := ServerConfig{Name: "events", Endpoint: server.URL + "/events", Transport: "sse", TimeoutS: 5}

	specs, err := mgr.FetchTools(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, "lint", specs[0].Name)
}

func TestNormalizeTransportRejectsUnknown(t *testing.T) {
	_, ok := NormalizeTransport("grpc")
	require.False(t, ok)
}

func TestResolvedHeadersInjectsProcessKeyOnlyForWunderServer(t *testing.T) {
	headers := resolvedHeaders(ServerConfig{Name: "wunder", Endpoint: "http://localhost/wunder/mcp"}, "proc-key")
	require.Equal(t, "proc-key", headers["X-Api-Key"])

	headers2 := resolvedHeaders(ServerConfig{Name: "other", Endpoint: "http://example.com/mcp"}, "proc-key")
	require.Empty(t, headers2["X-Api-Key"])
}

func TestResolvedHeadersDoesNotOverrideExistingAuth(t *testing.T) {
	headers := resolvedHeaders(ServerConfig{
		Name:    "wunder",
		Headers: map[string]string{"Authorization": "Bearer existing"},
	}, "proc-key")
	require.Equal(t, "Bearer existing", headers["Authorization"])
	require.Empty(t, headers["X-Api-Key"])
}
