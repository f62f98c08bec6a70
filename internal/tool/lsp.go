package tool

import (
	"context"
	"encoding/json"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

var lspOperations = map[string]bool{
	"definition":      true,
	"references":      true,
	"hover":           true,
	"documentSymbol":  true,
	"workspaceSymbol": true,
	"implementation":  true,
	"callHierarchy":   true,
}

// lspMethod maps an LSP query operation to its textDocument/*
// (or workspace/symbol) JSON-RPC method name.
func lspMethod(operation string) string {
	switch operation {
	case "definition":
		return "textDocument/definition"
	case "references":
		return "textDocument/references"
	case "hover":
		return "textDocument/hover"
	case "documentSymbol":
		return "textDocument/documentSymbol"
	case "workspaceSymbol":
		return "workspace/symbol"
	case "implementation":
		return "textDocument/implementation"
	case "callHierarchy":
		return "textDocument/prepareCallHierarchy"
	default:
		return ""
	}
}

// lspQuery resolves the file's applicable
// clients, opens/touches the document so the server has it loaded, then
// dispatches operation to every client and collects a per-server result
// list.
func lspQuery(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	operation, _ := args["operation"].(string)
	if !lspOperations[operation] {
		return nil, coreerr.New(coreerr.Unsupported, "unknown lsp operation %q", operation)
	}
	if tc.LSP == nil {
		return map[string]any{"ok": true, "results": []any{}}, nil
	}

	path, _ := args["path"].(string)
	line := toInt(args["line"])
	character := toInt(args["character"])
	query, _ := args["query"].(string)

	var absPath string
	if path != "" {
		resolved, err := tc.Workspace.ResolvePath(tc.UserID, path)
		if err != nil {
			return nil, err
		}
		absPath = resolved
	}

	clients, err := tc.LSP.GetClients(ctx, tc.UserID, absPath)
	if err != nil {
		return nil, err
	}

	method := lspMethod(operation)
	params := map[string]any{}
	if operation == "workspaceSymbol" {
		params["query"] = query
	} else {
		params["textDocument"] = map[string]any{"uri": "file://" + absPath}
		params["position"] = map[string]any{"line": line, "character": character}
	}

	results := make([]map[string]any, 0, len(clients))
	for _, client := range clients {
		if data, err := tc.Workspace.ReadFile(tc.UserID, path, 0); err == nil {
			_ = tc.LSP.OpenFile(client, absPath, string(data), false)
		}

		raw, callErr := client.Request(ctx, method, params)
		entry := map[string]any{"server_id": client.ID()}
		if callErr != nil {
			entry["error"] = callErr.Error()
		} else {
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				entry["error"] = err.Error()
			} else {
				entry["result"] = decoded
			}
		}
		results = append(results, entry)
	}

	return map[string]any{"ok": true, "results": results}, nil
}

// lspTouch is the "LSP touch-with-diagnostics-wait" helper invoked after
// write_file/replace_text/edit_file: open/update the document on
// every applicable client and wait (bounded) for fresh diagnostics so
// the caller's next read sees them.
func lspTouch(ctx context.Context, tc *ToolContext, path, content string) {
	if tc == nil || tc.LSP == nil {
		return
	}
	absPath, err := tc.Workspace.ResolvePath(tc.UserID, path)
	if err != nil {
		return
	}
	clients, err := tc.LSP.GetClients(ctx, tc.UserID, absPath)
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := tc.LSP.OpenFile(client, absPath, content, false); err != nil {
			continue
		}
		tc.LSP.WaitDiagnostics(ctx, client, absPath)
	}
}
