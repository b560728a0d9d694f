package hooks

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/forgecode/forge/pkg/models"
)

// Engine runs the hooks configured for one HookTrigger (spec §4.3): it
// dispatches ShellCommand hooks to a ShellRunner and Tool hooks to a
// caller-supplied ToolInvoker, in parallel, checking the TTL cache first.
type Engine struct {
	shell *ShellRunner
	cache *ResultCache
}

// NewEngine constructs an Engine with its own ShellRunner and ResultCache.
func NewEngine() *Engine {
	return &Engine{shell: NewShellRunner(), cache: NewResultCache()}
}

// ToolInvoker executes a Tool-variant hook (HookConfig.Kind == HookKindTool)
// by dispatching to the host's tool registry. isError mirrors the tool's own
// success/failure classification; err is reserved for invocation failures
// (unknown tool, panic-recovered execution, etc).
type ToolInvoker func(ctx context.Context, toolName string, args map[string]any) (output string, isError bool, err error)

// Outcome is the result of running one hook against a trigger.
type Outcome struct {
	Config  models.HookConfig
	Result  CommandResult
	Cached  bool
	Elapsed time.Duration
	Err     error
}

// Matches reports whether cfg's matcher (a glob over tool names, spec §4.3
// step 4) selects toolName. An empty matcher or empty toolName (the
// AgentSpawn/UserPromptSubmit triggers, which are unconditional) always match.
func Matches(cfg models.HookConfig, toolName string) bool {
	if cfg.Opts.Matcher == "" || toolName == "" {
		return true
	}
	ok, err := path.Match(cfg.Opts.Matcher, toolName)
	return err == nil && ok
}

// RunAll executes every hook in configs whose matcher selects toolName, in
// parallel, and returns their outcomes in configs order (spec §4.6.3 step 4:
// "for every matching hook ... run all in parallel"). Non-matching hooks are
// omitted from the result.
func (e *Engine) RunAll(ctx context.Context, configs []models.HookConfig, toolName string, payload ShellPayload, invoke ToolInvoker) []Outcome {
	matched := make([]models.HookConfig, 0, len(configs))
	for _, cfg := range configs {
		if Matches(cfg, toolName) {
			matched = append(matched, cfg)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(matched))
	var wg sync.WaitGroup
	for i, cfg := range matched {
		wg.Add(1)
		go func(idx int, cfg models.HookConfig) {
			defer wg.Done()
			p := payload
			if toolName != "" {
				p.ToolName = toolName
			}
			outcomes[idx] = e.run(ctx, cfg, p, invoke)
		}(i, cfg)
	}
	wg.Wait()
	return outcomes
}

// run executes a single hook, consulting and populating the TTL cache.
func (e *Engine) run(ctx context.Context, cfg models.HookConfig, payload ShellPayload, invoke ToolInvoker) Outcome {
	if cached, ok := e.cache.Get(cfg); ok {
		return Outcome{Config: cfg, Result: cached, Cached: true}
	}

	start := time.Now()
	var (
		result CommandResult
		err    error
	)
	switch cfg.Kind {
	case models.HookKindShellCommand:
		result, err = e.shell.Run(ctx, cfg, payload)
	case models.HookKindTool:
		result, err = e.runTool(ctx, cfg, invoke)
	default:
		err = fmt.Errorf("hooks: unknown HookConfig kind %q", cfg.Kind)
	}
	elapsed := time.Since(start)

	if err == nil {
		e.cache.Put(cfg, result)
	}
	return Outcome{Config: cfg, Result: result, Elapsed: elapsed, Err: err}
}

func (e *Engine) runTool(ctx context.Context, cfg models.HookConfig, invoke ToolInvoker) (CommandResult, error) {
	if invoke == nil {
		return CommandResult{}, fmt.Errorf("hooks: Tool-variant hook %q has no invoker configured", cfg.ToolName)
	}
	output, isError, err := invoke(ctx, cfg.ToolName, cfg.Args)
	if err != nil {
		return CommandResult{}, err
	}
	exitCode := 0
	if isError {
		exitCode = 1
	}
	opts := cfg.Opts.WithDefaults()
	return CommandResult{
		ExitCode: exitCode,
		Output:   truncateOutput([]byte(output), opts.MaxOutputSize),
		Blocked:  exitCode == 2,
	}, nil
}
