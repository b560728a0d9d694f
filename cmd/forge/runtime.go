package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/internal/hooks"
	"github.com/forgecode/forge/internal/sessions"
	"github.com/forgecode/forge/internal/tools/exec"
	"github.com/forgecode/forge/internal/tools/files"
	"github.com/forgecode/forge/pkg/models"
)

// buildSessionStore selects a sessions.Store: Cockroach-backed when a DSN is
// configured, an in-memory store otherwise (suitable for local, single-shot
// CLI runs).
func buildSessionStore(cfg *config.Config) (sessions.Store, error) {
	dsn := strings.TrimSpace(dbDSN(cfg))
	if dsn == "" {
		return sessions.NewMemoryStore(), nil
	}
	store, err := sessions.NewCockroachStoreFromDSN(dsn, sessions.DefaultCockroachConfig())
	if err != nil {
		return nil, fmt.Errorf("connect session store: %w", err)
	}
	return store, nil
}

// dbDSN is a seam over cfg so sessions persistence is opt-in: no
// [session.database] section exists yet, so today this always yields the
// in-memory store. Kept as a function so a future config field can wire in
// without touching buildSessionStore's call sites.
func dbDSN(cfg *config.Config) string {
	return ""
}

// registerBuiltinTools wires the filesystem and shell tools that ship with
// this runtime (spec §4.6.6 "built_in_name" tool patterns) onto rt.
func registerBuiltinTools(rt *agent.Runtime, cfg *config.Config) {
	workspace := cfg.Workspace.Path
	if workspace == "" {
		workspace = "."
	}
	filesCfg := files.Config{Workspace: workspace, MaxReadBytes: cfg.Workspace.MaxChars}

	rt.RegisterTool(files.NewReadTool(filesCfg))
	rt.RegisterTool(files.NewWriteTool(filesCfg))
	rt.RegisterTool(files.NewEditTool(filesCfg))
	rt.RegisterTool(files.NewApplyPatchTool(filesCfg))

	execManager := exec.NewManager(workspace)
	rt.RegisterTool(exec.NewExecTool("execute_bash", execManager))
	rt.RegisterTool(exec.NewProcessTool(execManager))
}

// toolInvoker adapts rt's own ToolExecutor into a hooks.ToolInvoker so
// Tool-variant hooks (HookConfig.Kind == HookKindTool) dispatch through the
// same registry as normal tool calls (spec §3 Tool hook variant).
func toolInvoker(rt *agent.Runtime) hooks.ToolInvoker {
	return func(ctx context.Context, toolName string, args map[string]any) (string, bool, error) {
		input, err := json.Marshal(args)
		if err != nil {
			return "", false, err
		}
		result, err := rt.ExecuteTool(ctx, toolName, input)
		if err != nil {
			return "", false, err
		}
		return result.Content, result.IsError, nil
	}
}

// buildRuntimeOptions assembles RuntimeOptions from the process config and
// the loaded agent config's hook declarations (spec §3 Hooks, §4.6.1-3).
func buildRuntimeOptions(cfg *config.Config, agentCfg *models.AgentConfig, trustAllTools bool) agent.RuntimeOptions {
	opts := agent.RuntimeOptions{
		MaxIterations:    cfg.Tools.Execution.MaxIterations,
		ToolParallelism:  cfg.Tools.Execution.Parallelism,
		ToolTimeout:      cfg.Tools.Execution.Timeout,
		ToolMaxAttempts:  cfg.Tools.Execution.MaxAttempts,
		ToolRetryBackoff: cfg.Tools.Execution.RetryBackoff,
		MaxToolCalls:     cfg.Tools.Execution.MaxToolCalls,
		RequireApproval:  cfg.Tools.Execution.RequireApproval,
		AsyncTools:       cfg.Tools.Execution.Async,
	}

	if trustAllTools {
		// spec §6 --trust-all-tools / §4.6.3 step 3: bypasses Ask and
		// downgrades a PreToolUse block to a warning, but hooks still run.
		opts.ElevatedTools = []string{"*"}
	} else if cfg.Tools.Elevated.Enabled != nil && *cfg.Tools.Elevated.Enabled {
		opts.ElevatedTools = cfg.Tools.Elevated.Tools
	}

	if agentCfg != nil && len(agentCfg.Hooks) > 0 {
		opts.Hooks = agentCfg.Hooks
		opts.HookEngine = hooks.NewEngine()
	}

	return opts
}
