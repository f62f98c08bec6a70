// Command wunder-coreboot is a minimal wiring example for the agent
// runtime core: it assembles one ToolContext from a config file and
// runs a single demonstration tool call against it. CLI argument
// parsing is an explicit non-goal of this core, so this intentionally
// stays a plain `os.Args` reader rather than a flag/command framework
// — it exists to prove the module boots, not as a product surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/a2a"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/config"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/exec"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/httpx"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/lsp"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/mcp"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/metrics"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/obslog"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/skill"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/tool"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/workspace"
)

func main() {
	obslog.Init(obslog.ParseLevel(os.Getenv("WUNDER_LOG_LEVEL")), os.Stderr)
	log := obslog.Component("main")

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	loader := config.NewLoader(configPath)
	snap, err := loader.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	stopWatch, err := loader.Watch()
	if err != nil {
		log.Warn("config watch disabled", "error", err)
		stopWatch = func() {}
	}
	defer stopWatch()

	baseDir := os.Getenv("WUNDER_WORKSPACE_DIR")
	if baseDir == "" {
		baseDir = "./runtime-workspace"
	}
	skillRoot := os.Getenv("WUNDER_SKILL_ROOT")

	var skillRoots []string
	if skillRoot != "" {
		skillRoots = []string{skillRoot}
	}
	ws := workspace.NewDiskManager(baseDir, skillRoots)

	skills, discoverErrs := skill.Discover(skillRoots)
	for _, e := range discoverErrs {
		log.Warn("skill discovery", "error", e)
	}

	metricsHub := metrics.New()
	loader.OnChange(func(fresh *config.Snapshot) {
		log.Info("config reloaded", "mcp_servers", len(fresh.MCP.Servers), "a2a_services", len(fresh.A2A.Services))
	})

	runner := exec.NewRunner(snap.Server.StreamChunkSize, nil)
	approvals := exec.NewApprovalCache()
	execMode := exec.ParseMode(snap.Security.ExecPolicyMode)

	lspManager := buildLSPManager(snap, ws)
	if lspManager != nil {
		lspManager.SetMetrics(metricsHub)
		lspManager.StartSweep()
		defer lspManager.StopSweep()
	}

	mcpManager := mcp.NewManager(snap.APIKey)
	mcpManager.SetMetrics(metricsHub)

	httpClient := httpx.New()
	a2aClient := a2a.NewClient(httpClient)
	a2aManager := a2a.NewManager(a2aClient, a2a.NewStore(), toA2AServices(snap.A2A.Services))

	const userID = "local"
	if _, err := ws.EnsureUserRoot(userID); err != nil {
		log.Error("ensure user workspace root", "error", err)
		os.Exit(1)
	}

	tc := &tool.ToolContext{
		UserID:        userID,
		SessionID:     fmt.Sprintf("boot-%d", time.Now().UnixNano()),
		Config:        snap,
		Workspace:     ws,
		LSP:           lspManager,
		MCP:           mcpManager,
		A2A:           a2aManager,
		Skills:        skills,
		ExecRunner:    runner,
		ExecMode:      execMode,
		ApprovalCache: approvals,
		HTTP:          &http.Client{Timeout: 30 * time.Second},
		Metrics:       metricsHub,
	}

	result, err := tool.Execute(context.Background(), tc, "list_files", map[string]any{"path": ""})
	if err != nil {
		log.Error("demonstration tool call failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	slog.Info("wunder-coreboot ready", "workspace", baseDir, "skills", len(skillRoots))
}

func buildLSPManager(snap *config.Snapshot, ws *workspace.DiskManager) *lsp.Manager {
	if !snap.LSP.Enabled {
		return nil
	}
	servers := make([]lsp.ServerConfig, 0, len(snap.LSP.Servers))
	for _, s := range snap.LSP.Servers {
		if s.Disabled {
			continue
		}
		initOpts, _ := json.Marshal(s.Initialization)
		servers = append(servers, lsp.ServerConfig{
			ID:                    s.ID,
			Command:               firstOf(s.Command),
			Args:                  restOf(s.Command),
			Env:                   s.Env,
			Extensions:            s.Extensions,
			RootMarkers:           s.RootMarkers,
			InitializationOptions: initOpts,
		})
	}
	return lsp.NewManager(
		true,
		servers,
		time.Duration(snap.LSP.TimeoutS)*time.Second,
		time.Duration(snap.LSP.DiagnosticsDebounceMS)*time.Millisecond,
		time.Duration(snap.LSP.IdleTTLS)*time.Second,
		ws.WorkspaceRoot,
	)
}

func firstOf(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func restOf(parts []string) []string {
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

func toA2AServices(services []config.A2AService) []a2a.ServiceConfig {
	out := make([]a2a.ServiceConfig, 0, len(services))
	for _, s := range services {
		auth := map[string]string{}
		if s.Token != "" {
			auth["bearer_token"] = s.Token
		}
		out = append(out, a2a.ServiceConfig{
			Name:     s.Name,
			Endpoint: s.Endpoint,
			Headers:  s.Headers,
			Auth:     auth,
		})
	}
	return out
}
