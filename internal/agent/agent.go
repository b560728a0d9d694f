package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgecode/forge/internal/agent/streamparser"
	"github.com/forgecode/forge/internal/hooks"
	"github.com/forgecode/forge/pkg/models"
)

// ExecutionStateKind enumerates the Agent's top-level states (spec §4.6):
//
//	Idle ──SendPrompt──▶ ExecutingHooks ──▶ ExecutingRequest ──▶ ExecutingTools ──▶ Idle
//	                                              │                    │
//	                                              ▼                    ▼
//	                                           Errored          WaitingForApproval
//	                                                                    │
//	                                                       SendApprovalResult (all resolved)
//	                                                                    ▼
//	                                                            ExecutingTools
//
// Errored and WaitingForApproval are both valid states from which SendPrompt
// may start a fresh turn.
type ExecutionStateKind int

const (
	StateIdle ExecutionStateKind = iota
	StateErrored
	StateWaitingForApproval
	StateExecutingHooks
	StateExecutingRequest
	StateExecutingTools
)

func (k ExecutionStateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateErrored:
		return "errored"
	case StateWaitingForApproval:
		return "waiting_for_approval"
	case StateExecutingHooks:
		return "executing_hooks"
	case StateExecutingRequest:
		return "executing_request"
	case StateExecutingTools:
		return "executing_tools"
	default:
		return "unknown"
	}
}

// ExecutionState is the Agent's current state, a tagged union over
// ExecutionStateKind (spec §4.6). Only the fields relevant to Kind are set.
type ExecutionState struct {
	Kind             ExecutionStateKind
	Err              error
	PendingTools     []models.ToolCall
	PendingApprovals []*ApprovalRequest
}

// ErrAgentNotIdle is returned by SendPrompt when the Agent cannot accept a
// new prompt in its current ExecutionState (spec §4.6: SendPrompt is
// rejected unless the Agent is in {Idle, Errored, WaitingForApproval}).
var ErrAgentNotIdle = errors.New("agent: not idle")

// ErrUnknownApprovalRequest is returned by SendApprovalResult when the given
// request id has no pending decision.
var ErrUnknownApprovalRequest = errors.New("agent: unknown or already-decided approval request")

var promptableKinds = map[ExecutionStateKind]bool{
	StateIdle:               true,
	StateErrored:            true,
	StateWaitingForApproval: true,
}

// AgentStateChangeEvent records an ExecutionState transition.
type AgentStateChangeEvent struct {
	From ExecutionState
	To   ExecutionState
}

// AgentEvent is the tagged union emitted on an Agent's event stream.
type AgentEvent struct {
	StateChange      *AgentStateChangeEvent
	AssistantText    string
	ReasoningContent string
	ToolResult       *ExecutionResult
	HookOutcome      *hooks.Outcome
	Done             *UserTurnMetadata
}

// pendingApproval tracks one outstanding SendApprovalResult for a tool call
// awaiting a decision; resultCh is written to exactly once.
type pendingApproval struct {
	req      *ApprovalRequest
	resultCh chan bool
}

// Agent is the spec §4.6 orchestrator. It drives a single AgentLoop through
// successive request/response cycles, routing each cycle's tool uses through
// the full permission pipeline (parse -> permission eval -> PreToolUse hooks
// -> approvals -> execute -> PostToolUse hooks -> results) before formatting
// and sending the next request, until a turn ends with no pending tool uses.
type Agent struct {
	id string

	loop  *AgentLoop
	tasks *TaskExecutor
	tools *ToolRegistry
	opts  RuntimeOptions

	approvals *ApprovalChecker

	mu                sync.Mutex
	conv              *models.ConversationState
	systemPrompt      string
	resources         []models.ResourceRef
	agentSpawnOutputs []string
	agentSpawnOnce    sync.Once
	state             ExecutionState
	cancel            context.CancelFunc
	pendingByID       map[string]*pendingApproval

	events chan AgentEvent
}

// NewAgent constructs an idle Agent wired to provider for completions, tools
// for execution, and approvals for permission gating. A nil tools or
// approvals argument falls back to an empty registry / default policy.
func NewAgent(provider LLMProvider, tools *ToolRegistry, approvals *ApprovalChecker, opts RuntimeOptions) *Agent {
	if tools == nil {
		tools = NewToolRegistry()
	}
	if approvals == nil {
		approvals = NewApprovalChecker(nil)
	}
	exec := NewExecutor(tools, nil)
	return &Agent{
		id:          uuid.NewString(),
		loop:        NewAgentLoop(provider),
		tasks:       NewTaskExecutor(exec, opts.HookEngine),
		tools:       tools,
		opts:        opts,
		approvals:   approvals,
		conv:        &models.ConversationState{},
		state:       ExecutionState{Kind: StateIdle},
		pendingByID: make(map[string]*pendingApproval),
		events:      make(chan AgentEvent, 128),
	}
}

// ID returns the Agent's identity, used as the ApprovalChecker agentID.
func (a *Agent) ID() string { return a.id }

// Events returns the Agent's event channel.
func (a *Agent) Events() <-chan AgentEvent { return a.events }

// SetSystemPrompt sets the instruction prepended to every request's context
// message (spec §4.6.5).
func (a *Agent) SetSystemPrompt(prompt string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systemPrompt = prompt
}

// SetResources sets the agent's declared resource references, resolved
// fresh on every request (spec §4.6.5).
func (a *Agent) SetResources(refs []models.ResourceRef) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resources = refs
}

// GetExecutionState returns the Agent's current ExecutionState (spec §4.6
// GetExecutionState).
func (a *Agent) GetExecutionState() ExecutionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) setState(to ExecutionState) {
	a.mu.Lock()
	from := a.state
	a.state = to
	a.mu.Unlock()
	a.events <- AgentEvent{StateChange: &AgentStateChangeEvent{From: from, To: to}}
}

// AgentSnapshot is the payload returned by CreateSnapshot: a deep-enough copy
// of conversation state and current execution state to resume or inspect the
// Agent later (spec §4.6 CreateSnapshot).
type AgentSnapshot struct {
	Conversation models.ConversationState
	State        ExecutionState
	CreatedAt    time.Time
}

// CreateSnapshot captures the Agent's conversation history and current
// ExecutionState (spec §4.6 CreateSnapshot).
func (a *Agent) CreateSnapshot() AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	messages := make([]models.ConversationMessage, len(a.conv.Messages))
	copy(messages, a.conv.Messages)
	return AgentSnapshot{
		Conversation: models.ConversationState{Messages: messages, MaxHistory: a.conv.MaxHistory},
		State:        a.state,
		CreatedAt:    time.Now(),
	}
}

// SendPrompt appends a user turn and starts driving the request/response/
// tool-use cycle asynchronously (spec §4.6 SendPrompt). It rejects with
// ErrAgentNotIdle unless the Agent is in {Idle, Errored, WaitingForApproval}.
func (a *Agent) SendPrompt(ctx context.Context, text string) error {
	a.mu.Lock()
	if !promptableKinds[a.state.Kind] {
		state := a.state
		a.mu.Unlock()
		return fmt.Errorf("%w: agent is in state %s", ErrAgentNotIdle, state.Kind)
	}
	a.conv.Push(models.ConversationMessage{
		Role:    models.ConversationRoleUser,
		Content: []models.ContentBlock{models.NewTextBlock(text)},
	})
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	go a.runTurn(runCtx, text)
	return nil
}

// Cancel aborts the in-flight turn, if any (spec §4.6 Cancel).
func (a *Agent) Cancel() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.loop.Cancel()
}

// SendApprovalResult resolves one pending tool-call approval created while
// the Agent is WaitingForApproval (spec §4.6 SendApprovalResult). Returns
// ErrUnknownApprovalRequest if requestID has no pending decision.
func (a *Agent) SendApprovalResult(requestID string, approved bool, decidedBy string) error {
	a.mu.Lock()
	pa, ok := a.pendingByID[requestID]
	if ok {
		delete(a.pendingByID, requestID)
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownApprovalRequest
	}

	decision := ApprovalDenied
	if approved {
		decision = ApprovalAllowed
	}
	pa.req.Decision = decision
	pa.req.DecidedAt = time.Now()
	pa.req.DecidedBy = decidedBy
	pa.resultCh <- approved
	return nil
}

// runTurn drives successive request/response/tool-use cycles until a turn
// ends with no pending tool uses, the Agent errors, or ctx is cancelled.
func (a *Agent) runTurn(ctx context.Context, prompt string) {
	a.runUserPromptSubmitHooks(ctx, prompt)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a.setState(ExecutionState{Kind: StateExecutingRequest})
		result, metadata, err := a.sendAndConsume(ctx)
		if err != nil {
			a.setState(ExecutionState{Kind: StateErrored, Err: err})
			return
		}

		toolCalls, assistantErr := a.recordAssistantTurn(result)
		if len(toolCalls) == 0 {
			if assistantErr != nil {
				a.setState(ExecutionState{Kind: StateErrored, Err: assistantErr})
				return
			}
			a.setState(ExecutionState{Kind: StateIdle})
			if metadata != nil {
				a.events <- AgentEvent{Done: metadata}
			}
			return
		}

		a.setState(ExecutionState{Kind: StateExecutingTools, PendingTools: toolCalls})
		results, ok := a.runToolPipeline(ctx, toolCalls)
		if !ok {
			return // cancelled mid-pipeline
		}

		a.conv.Push(models.ConversationMessage{
			Role:    models.ConversationRoleUser,
			Content: toolResultBlocks(results),
		})
	}
}

// sendAndConsume formats the outgoing request from current conversation
// state, dispatches it through the AgentLoop, and drains the loop's events
// until the turn's terminal ResponseStreamEnd (spec §4.6.5, §4.2).
func (a *Agent) sendAndConsume(ctx context.Context) (streamparser.Result, *UserTurnMetadata, error) {
	a.mu.Lock()
	systemPrompt := a.systemPrompt
	resources := a.resources
	spawnOutputs := append([]string(nil), a.agentSpawnOutputs...)
	a.mu.Unlock()

	reqArgs, err := FormatRequest(a.conv, a.tools.AsLLMTools(), systemPrompt, spawnOutputs, resources)
	if err != nil {
		return streamparser.Result{}, nil, fmt.Errorf("agent: format request: %w", err)
	}

	req := &CompletionRequest{
		System:   reqArgs.SystemPrompt,
		Messages: toCompletionMessages(reqArgs.Messages),
		Tools:    toolSpecsToTools(reqArgs.ToolSpecs),
	}

	if err := a.loop.SendRequest(ctx, req); err != nil {
		return streamparser.Result{}, nil, err
	}

	for ev := range a.loop.Events() {
		switch {
		case ev.AssistantText != "":
			a.events <- AgentEvent{AssistantText: ev.AssistantText}
		case ev.ReasoningContent != "":
			a.events <- AgentEvent{ReasoningContent: ev.ReasoningContent}
		case ev.ResponseStreamEnd != nil:
			metadata := a.drainUntilUserTurnEnd(ctx)
			return ev.ResponseStreamEnd.Result, metadata, nil
		}
	}
	return streamparser.Result{}, nil, fmt.Errorf("agent: loop event stream closed unexpectedly")
}

// drainUntilUserTurnEnd consumes events following a ResponseStreamEnd up to
// and including UserTurnEnd (only emitted when the loop has no pending tool
// uses); it returns nil immediately if the loop instead transitioned to
// PendingToolUseResults (no UserTurnEnd will follow for this cycle).
func (a *Agent) drainUntilUserTurnEnd(ctx context.Context) *UserTurnMetadata {
	if a.loop.GetExecutionState() != LoopPendingToolUseResults {
		select {
		case ev := <-a.loop.Events():
			if ev.UserTurnEnd != nil {
				return ev.UserTurnEnd
			}
		case <-ctx.Done():
		}
	}
	return nil
}

// recordAssistantTurn appends the assistant's message to conversation state
// and returns the tool calls it must resolve. Invalid-JSON tool uses are
// recorded as already-failed calls with no corresponding ToolUseBlock (spec
// §4.1 Err(InvalidJson), §4.6.3).
func (a *Agent) recordAssistantTurn(result streamparser.Result) ([]models.ToolCall, error) {
	var invalid *streamparser.InvalidJSONError
	if ije, ok := result.Err.(*streamparser.InvalidJSONError); ok {
		invalid = ije
	} else if result.Err != nil {
		return nil, result.Err
	}

	var text string
	var toolUses []streamparser.ToolUseBlock
	if invalid != nil {
		text = invalid.AssistantText
	} else if result.Message != nil {
		text = result.Message.Text
		toolUses = result.Message.ToolUses
	}

	var content []models.ContentBlock
	if text != "" {
		content = append(content, models.NewTextBlock(text))
	}
	var calls []models.ToolCall
	for _, tu := range toolUses {
		content = append(content, models.NewToolUseBlock(models.ToolUseBlock{ToolUseID: tu.ID, Name: tu.Name, Input: tu.Input}))
		calls = append(calls, models.ToolCall{ID: tu.ID, Name: tu.Name, Input: tu.Input})
	}
	if invalid != nil {
		for _, it := range invalid.InvalidTools {
			content = append(content, models.NewToolUseBlock(models.ToolUseBlock{ToolUseID: it.ID, Name: it.Name, Input: json.RawMessage("{}")}))
			calls = append(calls, models.ToolCall{ID: it.ID, Name: it.Name, Input: json.RawMessage("{}")})
		}
	}
	if len(content) > 0 {
		a.conv.Push(models.ConversationMessage{Role: models.ConversationRoleAssistant, Content: content})
	}
	return calls, nil
}

// runToolPipeline resolves every tool call through permission evaluation,
// PreToolUse hooks, approval gating, execution, and PostToolUse hooks (spec
// §4.6.3). It returns false if ctx was cancelled before every call resolved.
func (a *Agent) runToolPipeline(ctx context.Context, calls []models.ToolCall) ([]models.ToolResult, bool) {
	results := make([]models.ToolResult, len(calls))
	for i, tc := range calls {
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}

		decision, reason := a.approvals.Check(ctx, a.id, tc)
		switch decision {
		case ApprovalDenied:
			results[i] = models.ToolResult{ToolCallID: tc.ID, Content: "tool denied: " + reason, IsError: true}
			continue
		case ApprovalPending:
			approved, ok := a.awaitApproval(ctx, tc, reason)
			if !ok {
				return nil, false
			}
			if !approved {
				results[i] = models.ToolResult{ToolCallID: tc.ID, Content: "tool denied by user", IsError: true}
				continue
			}
		}

		results[i] = a.executeOneTool(ctx, tc)
	}
	return results, true
}

// awaitApproval creates a pending approval request, publishes
// WaitingForApproval, and blocks until SendApprovalResult resolves it or ctx
// is cancelled.
func (a *Agent) awaitApproval(ctx context.Context, tc models.ToolCall, reason string) (approved bool, ok bool) {
	req, err := a.approvals.CreateApprovalRequest(ctx, a.id, "", tc, reason)
	if err != nil || req == nil {
		return false, true
	}

	resultCh := make(chan bool, 1)
	a.mu.Lock()
	a.pendingByID[req.ID] = &pendingApproval{req: req, resultCh: resultCh}
	a.mu.Unlock()

	a.setState(ExecutionState{
		Kind:             StateWaitingForApproval,
		PendingTools:     []models.ToolCall{tc},
		PendingApprovals: []*ApprovalRequest{req},
	})

	select {
	case approved = <-resultCh:
		return approved, true
	case <-ctx.Done():
		a.mu.Lock()
		delete(a.pendingByID, req.ID)
		a.mu.Unlock()
		return false, false
	}
}

// executeOneTool runs PreToolUse hooks, executes the tool unless blocked,
// and runs PostToolUse hooks, returning the final ToolResult (spec §4.6.3).
func (a *Agent) executeOneTool(ctx context.Context, tc models.ToolCall) models.ToolResult {
	a.setState(ExecutionState{Kind: StateExecutingHooks, PendingTools: []models.ToolCall{tc}})
	if blockedBy, blocked := a.runHookBatch(ctx, models.HookPreToolUse, tc, nil); blocked {
		return models.ToolResult{ToolCallID: tc.ID, Content: "blocked by hook: " + blockedBy, IsError: true}
	}

	a.setState(ExecutionState{Kind: StateExecutingTools, PendingTools: []models.ToolCall{tc}})
	execResult := a.runExecutorTask(ctx, tc)
	a.events <- AgentEvent{ToolResult: execResult}

	result := models.ToolResult{ToolCallID: tc.ID}
	if execResult.Error != nil {
		result.Content = execResult.Error.Error()
		result.IsError = true
	} else if execResult.Result != nil {
		result.Content = execResult.Result.Content
		result.IsError = execResult.Result.IsError
	}

	responseJSON, _ := json.Marshal(result)
	a.runHookBatch(ctx, models.HookPostToolUse, tc, responseJSON)
	return result
}

// runExecutorTask dispatches tc through the TaskExecutor and waits for its
// terminal ToolExecutionEnd event (spec §4.3 start_tool_execution).
func (a *Agent) runExecutorTask(ctx context.Context, tc models.ToolCall) *ExecutionResult {
	id := a.tasks.StartToolExecution(ctx, tc)
	for {
		select {
		case ev := <-a.tasks.Events():
			if ev.ToolExecutionEnd != nil && ev.ToolExecutionEnd.ID == id {
				return ev.ToolExecutionEnd.Result
			}
		case <-ctx.Done():
			return &ExecutionResult{ToolCallID: tc.ID, ToolName: tc.Name, Error: ctx.Err()}
		}
	}
}

// runHookBatch dispatches the hooks configured for trigger against tc
// through the TaskExecutor, publishing each outcome on the Agent's event
// stream, and reports whether any matching PreToolUse hook blocked execution
// (exit code 2). toolResponse is only set for HookPostToolUse.
func (a *Agent) runHookBatch(ctx context.Context, trigger models.HookTrigger, tc models.ToolCall, toolResponse json.RawMessage) (blockedBy string, blocked bool) {
	configs := a.opts.Hooks[trigger]
	if len(configs) == 0 {
		return "", false
	}

	payload := hooks.ShellPayload{
		HookEventName: string(trigger),
		ToolName:      tc.Name,
		ToolInput:     json.RawMessage(tc.Input),
		ToolResponse:  toolResponse,
	}

	id := a.tasks.StartHookExecution(ctx, trigger, configs, tc.Name, payload, a.toolInvoker)
	for {
		select {
		case ev := <-a.tasks.Events():
			if ev.CachedHookRun != nil && ev.CachedHookRun.ID == id {
				a.events <- AgentEvent{HookOutcome: &hooks.Outcome{Config: ev.CachedHookRun.Config, Result: ev.CachedHookRun.Result, Cached: true}}
				continue
			}
			if ev.HookExecutionEnd != nil && ev.HookExecutionEnd.ID == id {
				for _, oc := range ev.HookExecutionEnd.Outcomes {
					a.events <- AgentEvent{HookOutcome: &oc}
					if trigger == models.HookPreToolUse && oc.Err == nil && oc.Result.Blocked && !blocked {
						blockedBy, blocked = oc.Result.Output, true
					}
				}
				return blockedBy, blocked
			}
		case <-ctx.Done():
			return "", false
		}
	}
}

// runUserPromptSubmitHooks runs every configured UserPromptSubmit hook once
// per turn and, on first use, the AgentSpawn hooks (spec §4.6.1, §4.6.2).
// Their outputs are not gating: failures and blocks are surfaced as events
// only.
func (a *Agent) runUserPromptSubmitHooks(ctx context.Context, prompt string) {
	a.agentSpawnOnce.Do(func() {
		configs := a.opts.Hooks[models.HookAgentSpawn]
		if len(configs) == 0 {
			return
		}
		id := a.tasks.StartHookExecution(ctx, models.HookAgentSpawn, configs, "", hooks.ShellPayload{HookEventName: string(models.HookAgentSpawn)}, a.toolInvoker)
		outcomes := a.awaitHookBatchOutcomes(ctx, id)
		var parts []string
		for _, oc := range outcomes {
			if oc.Err == nil && !oc.Result.Blocked && strings.TrimSpace(oc.Result.Output) != "" {
				parts = append(parts, oc.Result.Output)
			}
		}
		a.mu.Lock()
		a.agentSpawnOutputs = parts
		a.mu.Unlock()
	})

	configs := a.opts.Hooks[models.HookUserPromptSubmit]
	if len(configs) == 0 {
		return
	}
	payload := hooks.ShellPayload{HookEventName: string(models.HookUserPromptSubmit), Prompt: prompt}
	id := a.tasks.StartHookExecution(ctx, models.HookUserPromptSubmit, configs, "", payload, a.toolInvoker)
	a.awaitHookBatchOutcomes(ctx, id)
}

func (a *Agent) awaitHookBatchOutcomes(ctx context.Context, id TaskID) []hooks.Outcome {
	for {
		select {
		case ev := <-a.tasks.Events():
			if ev.HookExecutionEnd != nil && ev.HookExecutionEnd.ID == id {
				for _, oc := range ev.HookExecutionEnd.Outcomes {
					a.events <- AgentEvent{HookOutcome: &oc}
				}
				return ev.HookExecutionEnd.Outcomes
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// toolInvoker dispatches a Tool-variant hook into the Agent's own tool
// registry unless the RuntimeOptions specify a different invoker.
func (a *Agent) toolInvoker(ctx context.Context, toolName string, args map[string]any) (string, bool, error) {
	if a.opts.HookToolInvoker != nil {
		return a.opts.HookToolInvoker(ctx, toolName, args)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", true, err
	}
	result, err := a.tools.Execute(ctx, toolName, raw)
	if err != nil {
		return "", true, err
	}
	return result.Content, result.IsError, nil
}

// toolResultBlocks projects executed ToolResults into the ContentBlock form
// a conversation message carries (spec §3 ToolResultBlock).
func toolResultBlocks(results []models.ToolResult) []models.ContentBlock {
	blocks := make([]models.ContentBlock, 0, len(results))
	for _, r := range results {
		status := models.ToolResultSuccess
		if r.IsError {
			status = models.ToolResultError
		}
		blocks = append(blocks, models.NewToolResultBlock(models.ToolResultBlock{
			ToolUseID: r.ToolCallID,
			Status:    status,
			Content:   []models.ResultContent{models.TextResult(r.Content)},
		}))
	}
	return blocks
}

// toCompletionMessages flattens the ContentBlock-based ConversationMessages
// format_request produces into the CompletionMessage shape LLMProvider
// implementations consume.
func toCompletionMessages(msgs []models.ConversationMessage) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := CompletionMessage{Role: string(m.Role)}
		var text strings.Builder
		for _, b := range m.Content {
			switch b.Type {
			case models.ContentBlockText:
				text.WriteString(b.Text)
			case models.ContentBlockToolUse:
				if b.ToolUse != nil {
					cm.ToolCalls = append(cm.ToolCalls, models.ToolCall{ID: b.ToolUse.ToolUseID, Name: b.ToolUse.Name, Input: b.ToolUse.Input})
				}
			case models.ContentBlockToolResult:
				if b.ToolResult != nil {
					cm.ToolResults = append(cm.ToolResults, models.ToolResult{
						ToolCallID: b.ToolResult.ToolUseID,
						Content:    resultContentText(*b.ToolResult),
						IsError:    b.ToolResult.Status == models.ToolResultError,
					})
				}
			case models.ContentBlockImage:
				if b.Image != nil {
					cm.Attachments = append(cm.Attachments, models.Attachment{Type: "image", MimeType: b.Image.MediaType, URL: b.Image.URL})
				}
			}
		}
		cm.Content = text.String()
		out = append(out, cm)
	}
	return out
}

func resultContentText(tr models.ToolResultBlock) string {
	var sb strings.Builder
	for _, c := range tr.Content {
		switch c.Type {
		case models.ResultContentJSON:
			sb.Write(c.JSON)
		default:
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// specTool adapts a ToolSpec (name/description/schema only) into the Tool
// interface providers expect for request formatting. Execute is never
// called: actual dispatch always goes through the Agent's own tool pipeline.
type specTool struct {
	spec ToolSpec
}

func (t specTool) Name() string            { return t.spec.Name }
func (t specTool) Description() string     { return t.spec.Description }
func (t specTool) Schema() json.RawMessage { return t.spec.Schema }
func (t specTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return nil, fmt.Errorf("agent: specTool %q is a request-formatting stub and cannot be executed directly", t.spec.Name)
}

func toolSpecsToTools(specs []ToolSpec) []Tool {
	out := make([]Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, specTool{spec: s})
	}
	return out
}
