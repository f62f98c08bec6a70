package tool

import "context"

// finalReply terminates the
// orchestrator loop with the given content as the answer. There is no
// orchestrator loop in this core (that's a caller concern), so the
// built-in just shapes the answer payload.
func finalReply(_ context.Context, _ *ToolContext, args map[string]any) (map[string]any, error) {
	content, _ := args["content"].(string)
	return map[string]any{"answer": content}, nil
}
