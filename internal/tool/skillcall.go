package tool

import (
	"context"
	"strings"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// skillCall resolves a skill spec by
// name, with @owner/name disambiguation, and return its SKILL.md text
// plus a relative file tree for the caller to read before deciding
// whether to invoke the skill as a tool (running it is a dispatcher
// concern, not this built-in's).
func skillCall(_ context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	name, _ := args["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, coreerr.New(coreerr.PathRequired, "skill call requires a name")
	}
	if tc.Skills == nil {
		return map[string]any{"ok": false, "error": "no skill registry configured"}, nil
	}

	desc, err := tc.Skills.Describe(name)
	if err != nil {
		if coreerr.Has(err, coreerr.Unsupported) || coreerr.Has(err, coreerr.ConfigurationError) {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return nil, err
	}

	return map[string]any{
		"ok":      true,
		"content": desc.Content,
		"tree":    desc.Tree,
	}, nil
}
