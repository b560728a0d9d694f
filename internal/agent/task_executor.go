package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/forgecode/forge/internal/hooks"
	"github.com/forgecode/forge/pkg/models"
)

// TaskID identifies one asynchronous tool or hook execution dispatched
// through a TaskExecutor (spec §4.3).
type TaskID string

func newTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// ToolExecutionStartEvent fires when a tool call is dispatched.
type ToolExecutionStartEvent struct {
	ID         TaskID
	ToolCallID string
	ToolName   string
}

// ToolExecutionEndEvent carries a tool call's terminal ExecutionResult.
type ToolExecutionEndEvent struct {
	ID     TaskID
	Result *ExecutionResult
}

// HookExecutionStartEvent fires when a batch of matching hooks for one
// trigger is dispatched.
type HookExecutionStartEvent struct {
	ID      TaskID
	Trigger models.HookTrigger
	Count   int
}

// HookExecutionEndEvent carries every outcome from one dispatched hook batch.
type HookExecutionEndEvent struct {
	ID       TaskID
	Trigger  models.HookTrigger
	Outcomes []hooks.Outcome
}

// CachedHookRunEvent fires once per hook outcome that was served from the
// TTL cache rather than actually executed (spec §4.3 CachedHookRun).
type CachedHookRunEvent struct {
	ID     TaskID
	Config models.HookConfig
	Result hooks.CommandResult
}

// TaskEvent is the tagged union emitted on a TaskExecutor's event stream
// (spec §4.3). Exactly one field is non-nil per event.
type TaskEvent struct {
	ToolExecutionStart *ToolExecutionStartEvent
	ToolExecutionEnd   *ToolExecutionEndEvent
	HookExecutionStart *HookExecutionStartEvent
	HookExecutionEnd   *HookExecutionEndEvent
	CachedHookRun      *CachedHookRunEvent
}

// TaskExecutor is the spec §4.3 actor: it accepts start_tool_execution /
// start_hook_execution requests, runs them asynchronously against the
// existing parallel Executor (tool calls) and hooks.Engine (hook shell
// protocol, TTL cache, tool-variant hooks), and publishes every
// state transition as a TaskEvent that callers drain with RecvNext.
//
// Cancellation is tracked by TaskID in a single map shared by tool and hook
// executions, mirroring spec §4.3's single cancel_tool_execution /
// cancel_hook_execution surface over one underlying in-flight-work registry.
type TaskExecutor struct {
	exec       *Executor
	hookEngine *hooks.Engine

	mu      sync.Mutex
	cancels map[TaskID]context.CancelFunc

	events chan TaskEvent
}

// NewTaskExecutor constructs a TaskExecutor. A nil exec or hookEngine falls
// back to package defaults.
func NewTaskExecutor(exec *Executor, hookEngine *hooks.Engine) *TaskExecutor {
	if exec == nil {
		exec = NewExecutor(NewToolRegistry(), nil)
	}
	if hookEngine == nil {
		hookEngine = hooks.NewEngine()
	}
	return &TaskExecutor{
		exec:       exec,
		hookEngine: hookEngine,
		cancels:    make(map[TaskID]context.CancelFunc),
		events:     make(chan TaskEvent, 256),
	}
}

// Events returns the raw event channel. Most callers should prefer RecvNext,
// which additionally honors a caller-supplied context.
func (t *TaskExecutor) Events() <-chan TaskEvent {
	return t.events
}

// RecvNext blocks until the next TaskEvent is published or ctx is cancelled
// (spec §4.3 recv_next(buf)).
func (t *TaskExecutor) RecvNext(ctx context.Context) (TaskEvent, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-ctx.Done():
		return TaskEvent{}, ctx.Err()
	}
}

// StartToolExecution dispatches a single tool call asynchronously and
// returns a TaskID usable with CancelToolExecution (spec §4.3
// start_tool_execution). The call's retry/timeout/concurrency policy is the
// underlying Executor's (see executor.go).
func (t *TaskExecutor) StartToolExecution(ctx context.Context, call models.ToolCall) TaskID {
	id := newTaskID()
	execCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.cancels[id] = cancel
	t.mu.Unlock()

	t.events <- TaskEvent{ToolExecutionStart: &ToolExecutionStartEvent{ID: id, ToolCallID: call.ID, ToolName: call.Name}}

	go func() {
		result := t.exec.Execute(execCtx, call)
		t.mu.Lock()
		delete(t.cancels, id)
		t.mu.Unlock()
		t.events <- TaskEvent{ToolExecutionEnd: &ToolExecutionEndEvent{ID: id, Result: result}}
	}()

	return id
}

// CancelToolExecution cancels an in-flight tool execution (spec §4.3
// cancel_tool_execution). Returns false if id is unknown or already
// complete.
func (t *TaskExecutor) CancelToolExecution(id TaskID) bool {
	return t.cancel(id)
}

// StartHookExecution dispatches every hook in configs matching toolName for
// the given trigger, in parallel, through hooks.Engine.RunAll (spec §4.3
// start_hook_execution). Each cache hit is additionally reported as its own
// CachedHookRun event as results arrive.
func (t *TaskExecutor) StartHookExecution(ctx context.Context, trigger models.HookTrigger, configs []models.HookConfig, toolName string, payload hooks.ShellPayload, invoke hooks.ToolInvoker) TaskID {
	id := newTaskID()
	execCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.cancels[id] = cancel
	t.mu.Unlock()

	t.events <- TaskEvent{HookExecutionStart: &HookExecutionStartEvent{ID: id, Trigger: trigger, Count: len(configs)}}

	go func() {
		outcomes := t.hookEngine.RunAll(execCtx, configs, toolName, payload, invoke)
		t.mu.Lock()
		delete(t.cancels, id)
		t.mu.Unlock()

		for _, o := range outcomes {
			if o.Cached {
				t.events <- TaskEvent{CachedHookRun: &CachedHookRunEvent{ID: id, Config: o.Config, Result: o.Result}}
			}
		}
		t.events <- TaskEvent{HookExecutionEnd: &HookExecutionEndEvent{ID: id, Trigger: trigger, Outcomes: outcomes}}
	}()

	return id
}

// CancelHookExecution cancels an in-flight hook batch (spec §4.3
// cancel_hook_execution). Returns false if id is unknown or already
// complete.
func (t *TaskExecutor) CancelHookExecution(id TaskID) bool {
	return t.cancel(id)
}

func (t *TaskExecutor) cancel(id TaskID) bool {
	t.mu.Lock()
	cancelFunc, ok := t.cancels[id]
	delete(t.cancels, id)
	t.mu.Unlock()
	if ok {
		cancelFunc()
	}
	return ok
}
