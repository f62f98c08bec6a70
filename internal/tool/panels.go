package tool

import (
	"context"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

var validPlanStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"completed":   true,
}

// planPanel validates a non-empty step
// list, normalizes each step's status, demotes every in_progress step
// after the first back to pending (only one step can be "current"),
// emits a plan_update event, and reports ok.
func planPanel(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	raw, _ := args["steps"].([]any)
	if len(raw) == 0 {
		return nil, coreerr.New(coreerr.PathRequired, "plan panel requires a non-empty steps list")
	}

	steps := make([]map[string]any, 0, len(raw))
	seenInProgress := false
	for _, item := range raw {
		step, ok := item.(map[string]any)
		if !ok {
			continue
		}
		status := normalizeStatus(step["status"])
		if status == "in_progress" {
			if seenInProgress {
				status = "pending"
			}
			seenInProgress = true
		}
		steps = append(steps, map[string]any{
			"content": step["content"],
			"status":  status,
		})
	}

	emit(tc, "plan_update", map[string]any{"steps": steps})
	return map[string]any{"ok": true, "status": "ok"}, nil
}

func normalizeStatus(raw any) string {
	s, _ := raw.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	if validPlanStatuses[s] {
		return s
	}
	return "pending"
}

// questionPanel normalizes a routes
// list (dropping routes without a label), emits question_panel with
// keep_open=true, and returns the normalized routes.
func questionPanel(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	raw, _ := args["routes"].([]any)

	routes := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		route, ok := item.(map[string]any)
		if !ok {
			continue
		}
		label, _ := route["label"].(string)
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		entry := map[string]any{"label": label}
		if value, ok := route["value"]; ok {
			entry["value"] = value
		}
		routes = append(routes, entry)
	}

	payload := map[string]any{
		"question":  args["question"],
		"routes":    routes,
		"keep_open": true,
	}
	emit(tc, "question_panel", payload)
	return map[string]any{"ok": true, "routes": routes}, nil
}

// emit is a nil-emitter-safe wrapper around tc.Emitter.Emit.
func emit(tc *ToolContext, eventType string, payload map[string]any) {
	if tc == nil || tc.Emitter == nil {
		return
	}
	tc.Emitter.Emit(eventType, payload)
}
