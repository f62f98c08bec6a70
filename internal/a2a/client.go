package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/httpx"
)

// Client sends JSON-RPC 2.0 requests to A2A endpoints using the shared
// retrying httpx.Client.
type Client struct {
	http *httpx.Client
}

// NewClient wraps an httpx.Client for A2A use.
func NewClient(http *httpx.Client) *Client {
	return &Client{http: http}
}

type jsonRPCEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCFault   `json:"error,omitempty"`
}

type jsonRPCFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func resolveHeaders(svc ServiceConfig) map[string]string {
	headers := make(map[string]string, len(svc.Headers)+1)
	for k, v := range svc.Headers {
		headers[k] = v
	}
	if token := firstNonEmpty(svc.Auth["bearer_token"], svc.Auth["token"]); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if apiKey := svc.Auth["api_key"]; apiKey != "" {
		headers["X-Api-Key"] = apiKey
	}
	return headers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) call(ctx context.Context, svc ServiceConfig, method string, params any) (json.RawMessage, error) {
	req := jsonRPCEnvelope{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "marshal a2a request %s", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "build a2a request %s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range resolveHeaders(svc) {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "a2a request %s to %s", method, svc.Endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, coreerr.New(coreerr.TransportError, "a2a service %s returned HTTP %d", svc.Name, resp.StatusCode)
	}

	var envelope jsonRPCEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode a2a response for %s", method)
	}
	if envelope.Error != nil {
		return nil, coreerr.New(coreerr.ProtocolError, "a2a %s error: %s", method, envelope.Error.Message)
	}
	return envelope.Result, nil
}

// SendMessage POSTs a SendMessage request and
// requires result.task in the response.
func (c *Client) SendMessage(ctx context.Context, svc ServiceConfig, user, text, taskID, contextID string) (*TaskSnapshot, error) {
	params := map[string]any{
		"message": map[string]any{
			"parts": []map[string]any{{"text": text}},
		},
	}
	if taskID != "" {
		params["message"].(map[string]any)["taskId"] = taskID
	}
	if contextID != "" {
		params["message"].(map[string]any)["contextId"] = contextID
	}
	if user != "" {
		params["userId"] = user
	}

	result, err := c.call(ctx, svc, "SendMessage", params)
	if err != nil {
		return nil, err
	}
	return decodeTaskResult(result, svc)
}

// GetTask fetches a task's current state for a refresh.
func (c *Client) GetTask(ctx context.Context, svc ServiceConfig, taskID string) (*TaskSnapshot, error) {
	result, err := c.call(ctx, svc, "GetTask", map[string]any{"name": "tasks/" + taskID})
	if err != nil {
		return nil, err
	}
	return decodeTaskResult(result, svc)
}

func decodeTaskResult(raw json.RawMessage, svc ServiceConfig) (*TaskSnapshot, error) {
	var envelope struct {
		Task json.RawMessage `json:"task"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Task == nil {
		return nil, coreerr.New(coreerr.ProtocolError, "a2a response from %s missing result.task", svc.Name)
	}

	var task struct {
		ID        string `json:"id"`
		ContextID string `json:"contextId"`
		Answer    string `json:"answer"`
		Status    json.RawMessage `json:"status"`
		Artifacts []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal(envelope.Task, &task); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode a2a task from %s", svc.Name)
	}

	status := decodeStatus(task.Status)
	answer := task.Answer
	if answer == "" {
		var texts []string
		for _, artifact := range task.Artifacts {
			for _, part := range artifact.Parts {
				if part.Text != "" {
					texts = append(texts, part.Text)
				}
			}
		}
		answer = strings.Join(texts, "\n")
	}

	return &TaskSnapshot{
		TaskID:      task.ID,
		ContextID:   task.ContextID,
		Status:      status,
		Endpoint:    svc.Endpoint,
		ServiceName: svc.Name,
		Answer:      answer,
		UpdatedTime: time.Now(),
	}, nil
}

// decodeStatus reads task.status.state, or task.status directly if it
// is a bare string.
func decodeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var asObject struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		return asObject.State
	}
	return ""
}
