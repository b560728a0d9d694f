package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/forgecode/forge/internal/hooks"
	"github.com/forgecode/forge/pkg/models"
)

// hookBasePayload builds the stdin payload shared by every hook trigger for
// the given session, filling in only the fields that trigger applies to
// (spec §6: hookEventName/cwd are always present, the rest are conditional).
func (r *Runtime) hookBasePayload(trigger models.HookTrigger, session *models.Session) hooks.ShellPayload {
	cwd := ""
	if session != nil {
		if v, ok := session.Metadata["cwd"].(string); ok {
			cwd = v
		}
	}
	return hooks.ShellPayload{HookEventName: string(trigger), Cwd: cwd}
}

// runAgentSpawnHooksOnce runs every configured AgentSpawn hook at most once
// per session lifetime and returns their combined successful output, cached
// for reuse on every subsequent call (spec §4.6.1).
func (r *Runtime) runAgentSpawnHooksOnce(ctx context.Context, session *models.Session, emitter *EventEmitter) string {
	if r.opts.HookEngine == nil || session == nil {
		return ""
	}
	configs := r.opts.Hooks[models.HookAgentSpawn]
	if len(configs) == 0 {
		return ""
	}
	if cached, ok := r.agentSpawnHooks.Load(session.ID); ok {
		return cached.(string)
	}

	payload := r.hookBasePayload(models.HookAgentSpawn, session)
	outcomes := r.opts.HookEngine.RunAll(ctx, configs, "", payload, r.opts.HookToolInvoker)

	var parts []string
	for _, oc := range outcomes {
		r.emitHookOutcome(ctx, emitter, string(models.HookAgentSpawn), oc)
		if oc.Err != nil || oc.Result.Blocked {
			continue
		}
		if strings.TrimSpace(oc.Result.Output) != "" {
			parts = append(parts, oc.Result.Output)
		}
	}

	combined := strings.Join(parts, "\n")
	r.agentSpawnHooks.Store(session.ID, combined)
	return combined
}

// runUserPromptSubmitHooks runs every configured UserPromptSubmit hook for
// the incoming message and returns their combined successful output, to be
// folded into the message as additional context (spec §4.6.2).
func (r *Runtime) runUserPromptSubmitHooks(ctx context.Context, session *models.Session, msg *models.Message, emitter *EventEmitter) string {
	if r.opts.HookEngine == nil {
		return ""
	}
	configs := r.opts.Hooks[models.HookUserPromptSubmit]
	if len(configs) == 0 {
		return ""
	}

	payload := r.hookBasePayload(models.HookUserPromptSubmit, session)
	payload.Prompt = msg.Content
	outcomes := r.opts.HookEngine.RunAll(ctx, configs, "", payload, r.opts.HookToolInvoker)

	var parts []string
	for _, oc := range outcomes {
		r.emitHookOutcome(ctx, emitter, string(models.HookUserPromptSubmit), oc)
		if oc.Err != nil || oc.Result.Blocked {
			continue
		}
		if strings.TrimSpace(oc.Result.Output) != "" {
			parts = append(parts, oc.Result.Output)
		}
	}
	return strings.Join(parts, "\n")
}

// runPreToolUseHooks runs every matching PreToolUse hook for each tool call
// and returns the set of tool-call IDs that must be blocked (any matching
// hook exited 2), mapped to the blocking hook's output as the synthesized
// error result content (spec §4.6.3).
func (r *Runtime) runPreToolUseHooks(ctx context.Context, session *models.Session, calls []models.ToolCall, emitter *EventEmitter) map[string]string {
	blocked := make(map[string]string)
	if r.opts.HookEngine == nil {
		return blocked
	}
	configs := r.opts.Hooks[models.HookPreToolUse]
	if len(configs) == 0 {
		return blocked
	}

	for _, tc := range calls {
		payload := r.hookBasePayload(models.HookPreToolUse, session)
		payload.ToolName = tc.Name
		payload.ToolInput = json.RawMessage(tc.Input)

		outcomes := r.opts.HookEngine.RunAll(ctx, configs, tc.Name, payload, r.opts.HookToolInvoker)
		for _, oc := range outcomes {
			r.emitHookOutcome(ctx, emitter, string(models.HookPreToolUse), oc)
			if oc.Err == nil && oc.Result.Blocked {
				if _, already := blocked[tc.ID]; !already {
					blocked[tc.ID] = oc.Result.Output
				}
			}
		}
	}
	return blocked
}

// runPostToolUseHooks runs every matching PostToolUse hook after a tool's
// result is known. Hooks run informationally: their exit code never affects
// the already-produced result (spec §4.6.3, DESIGN.md Open Question decision).
func (r *Runtime) runPostToolUseHooks(ctx context.Context, session *models.Session, calls []models.ToolCall, results []ToolExecResult, emitter *EventEmitter) {
	if r.opts.HookEngine == nil {
		return
	}
	configs := r.opts.Hooks[models.HookPostToolUse]
	if len(configs) == 0 {
		return
	}

	for i, tc := range calls {
		if i >= len(results) {
			continue
		}
		responseJSON, err := json.Marshal(results[i].Result)
		if err != nil {
			continue
		}
		payload := r.hookBasePayload(models.HookPostToolUse, session)
		payload.ToolName = tc.Name
		payload.ToolInput = json.RawMessage(tc.Input)
		payload.ToolResponse = responseJSON

		outcomes := r.opts.HookEngine.RunAll(ctx, configs, tc.Name, payload, r.opts.HookToolInvoker)
		for _, oc := range outcomes {
			r.emitHookOutcome(ctx, emitter, string(models.HookPostToolUse), oc)
		}
	}
}

// emitHookOutcome translates an Engine Outcome into the hook.started/
// hook.finished/hook.cached AgentEvents (spec §4.3).
func (r *Runtime) emitHookOutcome(ctx context.Context, emitter *EventEmitter, trigger string, oc hooks.Outcome) {
	if emitter == nil {
		return
	}
	matcher := oc.Config.Opts.Matcher
	toolName := oc.Config.ToolName
	if oc.Cached {
		emitter.HookCached(ctx, trigger, matcher, toolName, oc.Result)
		return
	}
	emitter.HookStarted(ctx, trigger, matcher, toolName)
	emitter.HookFinished(ctx, trigger, matcher, toolName, oc.Result, oc.Elapsed)
}
