package mcp

import (
	"encoding/json"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// normalizeArguments shapes tool-call arguments: only
// JSON objects (possibly empty) are forwarded as arguments; scalars
// become nil (MCP's "no arguments").
func normalizeArguments(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if _, ok := v.(map[string]any); ok {
		return v
	}
	return nil
}

// normalizeCallResult flattens a tools/call result into the
// uniform { content, structured_content, meta, is_error } shape.
func normalizeCallResult(raw json.RawMessage) (*CallResult, error) {
	var parsed struct {
		Content           []json.RawMessage `json:"content"`
		StructuredContent json.RawMessage   `json:"structuredContent"`
		Meta              json.RawMessage   `json:"_meta"`
		IsError           bool              `json:"isError"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "decode mcp call result")
	}
	return &CallResult{
		Content:           parsed.Content,
		StructuredContent: parsed.StructuredContent,
		Meta:              parsed.Meta,
		IsError:           parsed.IsError,
	}, nil
}
