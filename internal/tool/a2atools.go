package tool

import (
	"context"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/a2a"
)

// a2aObserve returns the union of stored tasks
// matching the caller's filter, literal task entries, and not-yet-seen
// bare task ids, optionally refreshed from each task's endpoint.
func a2aObserve(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	if tc.A2A == nil {
		return map[string]any{"ok": true, "tasks": []any{}}, nil
	}
	snapshots := tc.A2A.Observe(ctx, tc.UserID, parseObserveArgs(args))
	return map[string]any{"ok": true, "tasks": snapshotsToAny(snapshots)}, nil
}

// a2aWait repeatedly observes until every
// task reaches a terminal status or wait_s elapses.
func a2aWait(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	if tc.A2A == nil {
		return map[string]any{"ok": true, "tasks": []any{}, "done": true}, nil
	}

	waitArgs := a2a.WaitArgs{
		Observe:       parseObserveArgs(args),
		WaitS:         toFloat(args["wait_s"]),
		PollIntervalS: toFloat(args["poll_interval_s"]),
	}
	result := tc.A2A.Wait(ctx, tc.UserID, waitArgs)

	return map[string]any{
		"ok":         true,
		"tasks":      snapshotsToAny(result.Tasks),
		"done":       result.Done,
		"elapsed_s":  result.Elapsed.Seconds(),
		"timeout":    result.Timeout,
	}, nil
}

func parseObserveArgs(args map[string]any) a2a.ObserveArgs {
	observe := a2a.ObserveArgs{
		TaskIDs:     toStringSlice(args["task_ids"]),
		Endpoint:    stringOf(args["endpoint"]),
		ServiceName: stringOf(args["service_name"]),
		Tasks:       parseLiteralTasks(args["tasks"]),
	}
	if v, ok := args["refresh"].(bool); ok {
		refresh := v
		observe.Refresh = &refresh
	}
	return observe
}

func parseLiteralTasks(raw any) []a2a.TaskSnapshot {
	items, _ := raw.([]any)
	out := make([]a2a.TaskSnapshot, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, a2a.TaskSnapshot{
			TaskID:      stringOf(obj["task_id"]),
			ContextID:   stringOf(obj["context_id"]),
			Status:      stringOf(obj["status"]),
			Endpoint:    stringOf(obj["endpoint"]),
			ServiceName: stringOf(obj["service_name"]),
			Answer:      stringOf(obj["answer"]),
		})
	}
	return out
}

func snapshotsToAny(snapshots []*a2a.TaskSnapshot) []map[string]any {
	out := make([]map[string]any, 0, len(snapshots))
	for _, s := range snapshots {
		entry := map[string]any{
			"task_id":      s.TaskID,
			"context_id":   s.ContextID,
			"status":       s.Status,
			"endpoint":     s.Endpoint,
			"service_name": s.ServiceName,
			"answer":       s.Answer,
		}
		if !s.UpdatedTime.IsZero() {
			entry["updated_time"] = s.UpdatedTime.Format(time.RFC3339)
		}
		if s.RefreshError != "" {
			entry["refresh_error"] = s.RefreshError
		}
		out = append(out, entry)
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toStringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
