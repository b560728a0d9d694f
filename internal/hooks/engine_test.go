package hooks

import (
	"context"
	"testing"

	"github.com/forgecode/forge/pkg/models"
)

func TestMatches_UnconditionalHookAlwaysMatches(t *testing.T) {
	cfg := models.HookConfig{}
	if !Matches(cfg, "fs_read") {
		t.Fatalf("hook with no matcher must match any tool")
	}
	if !Matches(cfg, "") {
		t.Fatalf("unconditional trigger (empty toolName) must always match")
	}
}

func TestMatches_Glob(t *testing.T) {
	cfg := models.HookConfig{Opts: models.HookOpts{Matcher: "fs_*"}}
	if !Matches(cfg, "fs_write") {
		t.Fatalf("expected fs_* to match fs_write")
	}
	if Matches(cfg, "shell_exec") {
		t.Fatalf("expected fs_* not to match shell_exec")
	}
}

func TestEngine_RunAll_FiltersNonMatching(t *testing.T) {
	e := NewEngine()
	configs := []models.HookConfig{
		{Kind: models.HookKindShellCommand, Command: "echo a", Opts: models.HookOpts{Matcher: "fs_*"}},
		{Kind: models.HookKindShellCommand, Command: "echo b", Opts: models.HookOpts{Matcher: "shell_*"}},
	}
	outcomes := e.RunAll(context.Background(), configs, "fs_read", ShellPayload{}, nil)
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 matching outcome, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Fatalf("unexpected error: %v", outcomes[0].Err)
	}
	if outcomes[0].Result.Output != "a" {
		t.Fatalf("unexpected output: %q", outcomes[0].Result.Output)
	}
}

func TestEngine_RunAll_CacheHitSkipsExecution(t *testing.T) {
	e := NewEngine()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: "echo first",
		Opts:    models.HookOpts{CacheTTLSeconds: 60},
	}
	first := e.RunAll(context.Background(), []models.HookConfig{cfg}, "", ShellPayload{}, nil)
	if len(first) != 1 || first[0].Cached {
		t.Fatalf("first run must not be a cache hit: %+v", first)
	}

	// Mutate the command; a cache hit must still return the original output
	// since CacheKey() only depends on cfg, not on external state.
	second := e.RunAll(context.Background(), []models.HookConfig{cfg}, "", ShellPayload{}, nil)
	if len(second) != 1 || !second[0].Cached {
		t.Fatalf("second run with identical HookConfig must hit the cache: %+v", second)
	}
	if second[0].Result.Output != "first" {
		t.Fatalf("cached output mismatch: %q", second[0].Result.Output)
	}
}

func TestEngine_RunTool(t *testing.T) {
	e := NewEngine()
	cfg := models.HookConfig{Kind: models.HookKindTool, ToolName: "notify", Args: map[string]any{"msg": "hi"}}
	invoke := func(ctx context.Context, toolName string, args map[string]any) (string, bool, error) {
		if toolName != "notify" {
			t.Fatalf("unexpected tool name %q", toolName)
		}
		return "notified", false, nil
	}
	outcomes := e.RunAll(context.Background(), []models.HookConfig{cfg}, "", ShellPayload{}, invoke)
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcome: %+v", outcomes)
	}
	if outcomes[0].Result.ExitCode != 0 || outcomes[0].Result.Output != "notified" {
		t.Fatalf("unexpected result: %+v", outcomes[0].Result)
	}
}

func TestEngine_RunTool_NoInvokerErrors(t *testing.T) {
	e := NewEngine()
	cfg := models.HookConfig{Kind: models.HookKindTool, ToolName: "notify"}
	outcomes := e.RunAll(context.Background(), []models.HookConfig{cfg}, "", ShellPayload{}, nil)
	if len(outcomes) != 1 || outcomes[0].Err == nil {
		t.Fatalf("expected error when no ToolInvoker is configured")
	}
}
