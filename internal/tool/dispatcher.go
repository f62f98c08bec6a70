package tool

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/a2a"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/config"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/mcp"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/skill"
)

// BuiltinHandler is one built-in tool's implementation.
type BuiltinHandler func(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error)

// builtins is the built-in tool table, keyed by canonical name.
var builtins = map[string]BuiltinHandler{
	toolFinalReply:    finalReply,
	toolExecCommand:   execCommand,
	toolPTC:           ptcCall,
	toolListFiles:     listFiles,
	toolSearchContent: searchContent,
	toolReadFiles:     readFiles,
	toolWriteFile:     writeFile,
	toolReplaceText:   replaceText,
	toolEditFile:      editFile,
	toolPlanPanel:     planPanel,
	toolQuestionPanel: questionPanel,
	toolSkillCall:     skillCall,
	toolLSPQuery:      lspQuery,
	toolA2AObserve:    a2aObserve,
	toolA2AWait:       a2aWait,
}

const a2aPrefix = "a2a@"

// Execute is the dispatcher entry point: canonicalize name, then try
// each backend in order — user-tool bindings, skills, A2A, MCP,
// knowledge bases, and finally the built-in table.
func Execute(ctx context.Context, tc *ToolContext, name string, args map[string]any) (map[string]any, error) {
	start := time.Now()
	result, err := execute(ctx, tc, name, args)
	tc.Metrics.RecordToolCall(name, time.Since(start))
	if err != nil {
		kind, ok := coreerr.KindOf(err)
		if !ok {
			kind = coreerr.TransportError
		}
		tc.Metrics.RecordToolError(name, string(kind))
	}
	return result, err
}

func execute(ctx context.Context, tc *ToolContext, name string, args map[string]any) (map[string]any, error) {
	canonical := resolveToolName(name)

	if binding, ok := tc.UserToolAlias[name]; ok {
		return dispatchUserTool(ctx, tc, binding, args)
	}
	if binding, ok := tc.UserToolAlias[canonical]; ok {
		return dispatchUserTool(ctx, tc, binding, args)
	}

	if tc.Skills != nil && tc.Skills.Registered(canonical) {
		return runSkill(ctx, tc, canonical, args)
	}

	if strings.HasPrefix(canonical, a2aPrefix) {
		return dispatchA2ASend(ctx, tc, strings.TrimPrefix(canonical, a2aPrefix), args)
	}

	if server, tool, ok := splitMCPName(canonical); ok {
		return dispatchMCP(ctx, tc, server, tool, args)
	}

	if base, ok := findKnowledgeBase(tc, canonical); ok {
		return dispatchKnowledge(ctx, tc, base, args)
	}

	handler, ok := builtins[canonical]
	if !ok {
		return nil, coreerr.New(coreerr.Unsupported, "unknown tool %q", name)
	}
	return handler(ctx, tc, args)
}

// splitMCPName recognizes the "<server>@<tool>" MCP shape. a2a@ is
// routed separately, so it is excluded here.
func splitMCPName(name string) (server, tool string, ok bool) {
	if !strings.Contains(name, "@") || strings.HasPrefix(name, a2aPrefix) {
		return "", "", false
	}
	parts := strings.SplitN(name, "@", 2)
	return parts[0], parts[1], true
}

func findKnowledgeBase(tc *ToolContext, name string) (base int, ok bool) {
	if tc.Config == nil {
		return 0, false
	}
	for i, b := range tc.Config.Knowledge.Bases {
		if b.Name == name {
			return i, true
		}
	}
	return 0, false
}

func dispatchUserTool(ctx context.Context, tc *ToolContext, binding UserToolBinding, args map[string]any) (map[string]any, error) {
	switch binding.Kind {
	case UserToolMCP:
		server, tool, ok := splitMCPName(binding.Target)
		if !ok {
			return nil, coreerr.New(coreerr.ConfigurationError, "user tool binding %q is not a valid <server>@<tool> target", binding.Target)
		}
		return dispatchMCP(ctx, tc, server, tool, args)
	case UserToolSkill:
		return runSkill(ctx, tc, binding.Target, args)
	case UserToolKnowledge:
		for i, b := range tc.Config.Knowledge.Bases {
			if b.Name == binding.Target && (!b.UserScoped || binding.Owner == tc.UserID) {
				return dispatchKnowledge(ctx, tc, i, args)
			}
		}
		for i, b := range tc.Config.Knowledge.Bases {
			if b.Name == binding.Target {
				return dispatchKnowledge(ctx, tc, i, args)
			}
		}
		return nil, coreerr.New(coreerr.ConfigurationError, "knowledge base %q is not configured", binding.Target)
	default:
		return nil, coreerr.New(coreerr.ConfigurationError, "unknown user tool binding kind %q", binding.Kind)
	}
}

// runSkill runs a registered skill via the collaborator
// runner protocol and mark the workspace tree dirty.
func runSkill(ctx context.Context, tc *ToolContext, nameOrRef string, args map[string]any) (map[string]any, error) {
	spec, err := tc.Skills.Resolve(nameOrRef)
	if err != nil {
		return nil, err
	}

	output, logicalErr, err := skill.Run(ctx, spec, args)
	if err != nil {
		return nil, err
	}
	tc.Workspace.MarkTreeDirty(tc.UserID)

	if logicalErr != "" {
		return map[string]any{"ok": false, "error": logicalErr}, nil
	}
	return map[string]any{"ok": true, "output": output}, nil
}

func dispatchA2ASend(ctx context.Context, tc *ToolContext, serviceName string, args map[string]any) (map[string]any, error) {
	if tc.A2A == nil {
		return nil, coreerr.New(coreerr.ConfigurationError, "a2a is not configured")
	}
	text := stringOf(args["content"])
	if text == "" {
		text = stringOf(args["text"])
	}
	snap, err := tc.A2A.Send(ctx, tc.UserID, serviceName, text, stringOf(args["task_id"]), stringOf(args["context_id"]))
	if err != nil {
		return nil, err
	}
	tasks := snapshotsToAny([]*a2a.TaskSnapshot{snap})
	return map[string]any{"ok": true, "task": tasks[0]}, nil
}

func dispatchMCP(ctx context.Context, tc *ToolContext, serverName, toolName string, args map[string]any) (map[string]any, error) {
	if tc.MCP == nil {
		return nil, coreerr.New(coreerr.ConfigurationError, "mcp is not configured")
	}
	cfg, ok := findMCPServer(tc, serverName)
	if !ok {
		return nil, coreerr.New(coreerr.ConfigurationError, "mcp server %q is not configured", serverName)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.ProtocolError, err, "encode arguments for %s@%s", serverName, toolName)
	}

	result, err := tc.MCP.CallTool(ctx, cfg, toolName, raw)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"ok":                 !result.IsError,
		"content":            result.Content,
		"structured_content": result.StructuredContent,
		"meta":               result.Meta,
		"is_error":           result.IsError,
	}, nil
}

func findMCPServer(tc *ToolContext, name string) (mcp.ServerConfig, bool) {
	if byOwner, ok := tc.MCPServersByOwner[tc.UserID]; ok {
		if cfg, ok := byOwner[name]; ok {
			return toMCPServerConfig(cfg, tc.Config.MCP.TimeoutS), true
		}
	}
	for _, s := range tc.Config.MCP.Servers {
		if s.Name == name {
			return toMCPServerConfig(s, tc.Config.MCP.TimeoutS), true
		}
	}
	return mcp.ServerConfig{}, false
}

func toMCPServerConfig(s config.MCPServer, defaultTimeoutS int) mcp.ServerConfig {
	auth := map[string]string{}
	if s.BearerToken != "" {
		auth["bearer_token"] = s.BearerToken
	}
	if s.APIKey != "" {
		auth["api_key"] = s.APIKey
	}
	return mcp.ServerConfig{
		Name:       s.Name,
		Endpoint:   s.Endpoint,
		Transport:  s.Transport,
		Headers:    s.Headers,
		AllowTools: s.AllowTools,
		Auth:       auth,
		TimeoutS:   defaultTimeoutS,
	}
}

func dispatchKnowledge(ctx context.Context, tc *ToolContext, baseIdx int, args map[string]any) (map[string]any, error) {
	if tc.Knowledge == nil {
		return nil, coreerr.New(coreerr.ConfigurationError, "knowledge routing is not configured")
	}
	base := tc.Config.Knowledge.Bases[baseIdx]
	keywords := toStringSlice(args["keywords"])
	if len(keywords) == 0 {
		if q := stringOf(args["query"]); q != "" {
			keywords = []string{q}
		}
	}

	result, err := tc.Knowledge.Route(ctx, tc.Config.Knowledge, base, keywords)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"ok": true, "knowledge_base": base.Name}
	if len(result.Queries) > 0 {
		queries := make([]map[string]any, 0, len(result.Queries))
		for _, q := range result.Queries {
			queries = append(queries, map[string]any{"keyword": q.Keyword, "documents": q.Documents})
		}
		payload["queries"] = queries
	}
	if len(result.Documents) > 0 {
		payload["documents"] = result.Documents
	}
	emit(tc, "knowledge_request", map[string]any{"knowledge_base": base.Name, "keywords": keywords})
	return payload, nil
}

