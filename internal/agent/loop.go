package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgecode/forge/internal/agent/streamparser"
)

// AgentLoopId uniquely identifies one AgentLoop instance (spec §3 AgentLoopId).
type AgentLoopId string

// NewAgentLoopId mints a fresh AgentLoopId.
func NewAgentLoopId() AgentLoopId {
	return AgentLoopId(uuid.NewString())
}

// LoopState is the Agent Loop's state machine (spec §4.2).
//
//	Idle ──SendRequest──▶ SendingRequest ──first chunk──▶ ConsumingResponse
//	  ▲                                                         │
//	  │                                               stream end (no tools)
//	  │                                                         ▼
//	  └──────────────── UserTurnEnded ◀── Cancel ── PendingToolUseResults
//	                          ▲                              │
//	                          └── SendRequest (next turn) ───┘
//
// Errored is reachable from SendingRequest or ConsumingResponse on a
// terminal StreamError, and is itself a valid state from which SendRequest
// may be retried.
type LoopState int

const (
	LoopIdle LoopState = iota
	LoopSendingRequest
	LoopConsumingResponse
	LoopPendingToolUseResults
	LoopUserTurnEnded
	LoopErrored
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopSendingRequest:
		return "sending_request"
	case LoopConsumingResponse:
		return "consuming_response"
	case LoopPendingToolUseResults:
		return "pending_tool_use_results"
	case LoopUserTurnEnded:
		return "user_turn_ended"
	case LoopErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ErrStreamCurrentlyExecuting is returned by SendRequest when the loop is
// already mid-stream (spec §4.2: SendRequest is rejected unless the loop is
// in {Idle, Errored, PendingToolUseResults, UserTurnEnded}).
var ErrStreamCurrentlyExecuting = errors.New("agent loop: stream currently executing")

// sendableStates are the LoopStates from which SendRequest may be accepted.
var sendableStates = map[LoopState]bool{
	LoopIdle:                  true,
	LoopErrored:                true,
	LoopPendingToolUseResults:  true,
	LoopUserTurnEnded:          true,
}

// UserTurnMetadata summarizes a completed user turn (spec §4.2 UserTurnEnd).
type UserTurnMetadata struct {
	InputTokens  int
	OutputTokens int
	ToolUseCount int
	Duration     time.Duration
	Cancelled    bool
}

// LoopEvent is the tagged union emitted on the Agent Loop's event channel
// (spec §4.2). Exactly one field is non-zero per event.
type LoopEvent struct {
	LoopStateChange  *LoopStateChangeEvent
	AssistantText    string
	ToolUseStart     *ToolUseStartEvent
	ToolUse          *streamparser.ToolUseBlock
	ReasoningContent string
	ResponseStreamEnd *ResponseStreamEndEvent
	UserTurnEnd      *UserTurnMetadata
}

// LoopStateChangeEvent records a LoopState transition.
type LoopStateChangeEvent struct {
	From LoopState
	To   LoopState
}

// ToolUseStartEvent fires when a tool-use content block begins (before its
// input JSON has finished accumulating).
type ToolUseStartEvent struct {
	ID   string
	Name string
}

// ResponseStreamEndEvent is the terminal per-request result (spec §4.1/§4.2).
type ResponseStreamEndEvent struct {
	Result streamparser.Result
}

// AgentLoop drives a single request/response cycle against an LLMProvider,
// folding its event stream through a streamparser.Parser and exposing the
// result as a LoopState machine with an event channel (spec §4.2). One
// AgentLoop handles one logical conversation turn at a time; the owning
// Agent orchestrator (see agent.go) is responsible for feeding it
// successive requests across a multi-turn tool-use cycle.
type AgentLoop struct {
	id       AgentLoopId
	provider LLMProvider

	mu         sync.Mutex
	state      LoopState
	cancelFunc context.CancelFunc
	turnStart  time.Time

	events chan LoopEvent
}

// NewAgentLoop constructs an idle AgentLoop bound to the given provider.
// Per-tool and per-hook execution policy lives in the Task Executor (see
// executor.go), not in the request/response cycle the loop owns.
func NewAgentLoop(provider LLMProvider) *AgentLoop {
	return &AgentLoop{
		id:       NewAgentLoopId(),
		provider: provider,
		state:    LoopIdle,
		events:   make(chan LoopEvent, 64),
	}
}

// ID returns this loop's AgentLoopId.
func (l *AgentLoop) ID() AgentLoopId {
	return l.id
}

// Events returns the channel on which LoopEvents are delivered. The channel
// is never closed by the loop itself; callers select on it alongside a
// context or lifetime signal of their own.
func (l *AgentLoop) Events() <-chan LoopEvent {
	return l.events
}

// GetExecutionState returns the current LoopState (spec §4.2).
func (l *AgentLoop) GetExecutionState() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *AgentLoop) transition(to LoopState) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.mu.Unlock()
	if from != to {
		l.events <- LoopEvent{LoopStateChange: &LoopStateChangeEvent{From: from, To: to}}
	}
}

// SendRequest starts a new request/response cycle (spec §4.2). It rejects
// with ErrStreamCurrentlyExecuting unless the loop is currently in one of
// {Idle, Errored, PendingToolUseResults, UserTurnEnded}. SendRequest returns
// as soon as the request has been dispatched to the provider; the response
// is streamed asynchronously via Events().
func (l *AgentLoop) SendRequest(ctx context.Context, req *CompletionRequest) error {
	l.mu.Lock()
	if !sendableStates[l.state] {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w: loop is in state %s", ErrStreamCurrentlyExecuting, state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel
	l.turnStart = time.Now()
	l.mu.Unlock()

	l.transition(LoopSendingRequest)

	chunks, err := l.provider.Complete(runCtx, req)
	if err != nil {
		l.transition(LoopErrored)
		l.events <- LoopEvent{ResponseStreamEnd: &ResponseStreamEndEvent{Result: streamparser.Result{
			Err: &streamparser.StreamError{Class: streamparser.ClassServiceFailure, Message: err.Error()},
		}}}
		return nil
	}

	go l.consume(runCtx, chunks)
	return nil
}

// consume drains the provider's chunk stream through a streamparser.Parser,
// emitting LoopEvents as it goes, and performs the terminal state
// transition once the stream ends.
func (l *AgentLoop) consume(ctx context.Context, chunks <-chan *CompletionChunk) {
	parser := streamparser.New()
	parser.OnMessageStart("assistant")
	l.transition(LoopConsumingResponse)

	var inputTokens, outputTokens int
	toolUseCount := 0
	var activeToolID string

	for chunk := range chunks {
		select {
		case <-ctx.Done():
			parser.OnStreamError(&streamparser.StreamError{Class: streamparser.ClassInterrupted, Message: "cancelled"})
			l.finishTurn(parser, inputTokens, outputTokens, toolUseCount, true)
			return
		default:
		}

		switch {
		case chunk.Error != nil:
			parser.OnStreamError(&streamparser.StreamError{Class: streamparser.ClassServiceFailure, Message: chunk.Error.Error()})
		case chunk.ToolCall != nil:
			if activeToolID == "" {
				activeToolID = chunk.ToolCall.ID
				l.events <- LoopEvent{ToolUseStart: &ToolUseStartEvent{ID: chunk.ToolCall.ID, Name: chunk.ToolCall.Name}}
			}
			parser.OnContentBlockStartToolUse(chunk.ToolCall.ID, chunk.ToolCall.Name)
			if len(chunk.ToolCall.Input) > 0 {
				parser.OnToolInputDelta(string(chunk.ToolCall.Input))
			}
			if block, invalid := parser.OnContentBlockStop(); block != nil {
				toolUseCount++
				l.events <- LoopEvent{ToolUse: block}
			} else if invalid != nil {
				toolUseCount++
			}
			activeToolID = ""
		case chunk.Thinking != "":
			l.events <- LoopEvent{ReasoningContent: chunk.Thinking}
		case chunk.Text != "":
			if text := parser.OnTextDelta(chunk.Text); text != "" {
				l.events <- LoopEvent{AssistantText: text}
			}
		case chunk.Done:
			inputTokens = chunk.InputTokens
			outputTokens = chunk.OutputTokens
			parser.OnMessageStop("end_turn")
		}
	}

	l.finishTurn(parser, inputTokens, outputTokens, toolUseCount, false)
}

func (l *AgentLoop) finishTurn(parser *streamparser.Parser, inputTokens, outputTokens, toolUseCount int, cancelled bool) {
	result := parser.End()
	l.events <- LoopEvent{ResponseStreamEnd: &ResponseStreamEndEvent{Result: result}}

	metadata := UserTurnMetadata{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		ToolUseCount: toolUseCount,
		Duration:     time.Since(l.turnStart),
		Cancelled:    cancelled,
	}

	switch {
	case result.Err != nil:
		if _, ok := result.Err.(*streamparser.InvalidJSONError); !ok {
			l.transition(LoopErrored)
			return
		}
		// Invalid tool-use JSON still produces tool-use results (the
		// orchestrator synthesizes a ToolResult error for each invalid
		// call), so the loop proceeds as if tools were pending.
		l.transition(LoopPendingToolUseResults)
	case toolUseCount > 0:
		l.transition(LoopPendingToolUseResults)
	default:
		l.transition(LoopUserTurnEnded)
		l.events <- LoopEvent{UserTurnEnd: &metadata}
	}
}

// Cancel drains the in-flight stream (if any), transitions to
// UserTurnEnded, and returns the resulting UserTurnMetadata (spec §4.2).
func (l *AgentLoop) Cancel() UserTurnMetadata {
	l.mu.Lock()
	cancel := l.cancelFunc
	started := l.turnStart
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	metadata := UserTurnMetadata{Cancelled: true, Duration: time.Since(started)}
	l.transition(LoopUserTurnEnded)
	l.events <- LoopEvent{UserTurnEnd: &metadata}
	return metadata
}
