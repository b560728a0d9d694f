// Package streamparser implements the Stream Parser component of spec §4.1:
// it deterministically folds a sequence of low-level provider events into
// incremental AssistantText emissions, structured ToolUse emissions, and a
// terminal ResponseStreamEnd result.
//
// A Parser is single-use: construct one per model response stream, feed it
// events as the provider's native SSE stream is consumed, and call End once
// the upstream iterator signals completion.
package streamparser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorClass is the taxonomy of terminal stream errors (spec §4.1).
type ErrorClass int

const (
	ClassOther ErrorClass = iota
	ClassContextWindowOverflow
	ClassServiceFailure
	ClassThrottling
	ClassValidation
	ClassStreamTimeout
	ClassInterrupted
)

func (c ErrorClass) String() string {
	switch c {
	case ClassContextWindowOverflow:
		return "context_window_overflow"
	case ClassServiceFailure:
		return "service_failure"
	case ClassThrottling:
		return "throttling"
	case ClassValidation:
		return "validation"
	case ClassStreamTimeout:
		return "stream_timeout"
	case ClassInterrupted:
		return "interrupted"
	default:
		return "other"
	}
}

// StreamError is a typed, classified stream-termination error (spec §4.1's
// "StreamError classes" taxonomy). It satisfies the standard error interface
// and preserves provider diagnostics for the CLI layer (spec §7).
type StreamError struct {
	Class              ErrorClass
	Message            string
	OriginalRequestID  string
	OriginalStatusCode int
	Duration           time.Duration // only meaningful for ClassStreamTimeout
}

func (e *StreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Class, e.Message)
	}
	return e.Class.String()
}

// IsRetryable reports whether the orchestrator's error-recovery table
// (spec §4.6.4) treats this class as something other than a terminal Stop.
func (e *StreamError) IsRetryable() bool {
	return e != nil && e.Class == ClassStreamTimeout
}

// InvalidToolUse records a tool-use content block whose accumulated input
// never parsed as JSON through stream end (spec §4.1, §8).
type InvalidToolUse struct {
	ID   string
	Name string
	Raw  string
}

// ToolUseBlock is a successfully parsed tool invocation (spec §3 ToolUseBlock).
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// InvalidJSONError is the terminal result when one or more tool-use blocks
// never parsed as JSON (spec §4.1 Err(InvalidJson)).
type InvalidJSONError struct {
	InvalidTools  []InvalidToolUse
	AssistantText string
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("invalid tool-use JSON for %d tool call(s)", len(e.InvalidTools))
}

// AssistantMessage is the successful terminal result: the folded assistant
// turn (spec §3 Message{role=Assistant}).
type AssistantMessage struct {
	Text     string
	ToolUses []ToolUseBlock
}

// Result is the ResponseStreamEnd payload (spec §4.1).
type Result struct {
	Message *AssistantMessage
	Err     error // *StreamError or *InvalidJSONError; nil on success
}

type toolAccum struct {
	id   string
	name string
	buf  strings.Builder
}

// Parser implements the spec §4.1 state machine. Not safe for concurrent
// use; one Parser instance is owned by exactly one Agent Loop request cycle.
type Parser struct {
	started      bool
	messageStops int
	metadataSeen int
	text         strings.Builder
	toolUses     []ToolUseBlock
	invalid      []InvalidToolUse
	current      *toolAccum
	streamErr    *StreamError
	errored      bool
}

// New returns a Parser ready to consume one provider event stream.
func New() *Parser {
	return &Parser{}
}

// OnMessageStart handles a MessageStart event. Per spec §4.1 the first
// non-error event must carry role=Assistant; any other role marks the
// stream errored with a Validation-class error.
func (p *Parser) OnMessageStart(role string) {
	p.started = true
	if role != "" && role != "assistant" {
		p.fail(&StreamError{Class: ClassValidation, Message: "message_start role was not assistant"})
	}
}

// OnContentBlockStartToolUse begins a new tool-use accumulator (spec §4.1:
// "on ContentBlockStart{ToolUse}, begin a tool-use accumulator").
func (p *Parser) OnContentBlockStartToolUse(id, name string) {
	p.current = &toolAccum{id: id, name: name}
}

// OnTextDelta appends a text delta and returns the chunk for immediate
// emission (spec §4.1: "Text deltas append to assistant_text and emit
// AssistantText chunks").
func (p *Parser) OnTextDelta(s string) string {
	if s == "" {
		return ""
	}
	p.text.WriteString(s)
	return s
}

// OnToolInputDelta appends a JSON fragment to the active tool-use
// accumulator. A delta arriving with no active accumulator is an internal
// invariant violation (spec §7) and is dropped, not panicked.
func (p *Parser) OnToolInputDelta(chunk string) {
	if p.current == nil || chunk == "" {
		return
	}
	p.current.buf.WriteString(chunk)
}

// OnContentBlockStop finalizes the active tool-use accumulator, attempting
// to JSON-parse its buffer. On success the ToolUseBlock is returned and
// retained; on failure an InvalidToolUse is recorded and the stream is
// marked errored (spec §4.1). Returns (nil, nil) when no tool-use block was
// active (e.g. a text or thinking block closing).
func (p *Parser) OnContentBlockStop() (*ToolUseBlock, *InvalidToolUse) {
	if p.current == nil {
		return nil, nil
	}
	acc := p.current
	p.current = nil

	raw := acc.buf.String()
	var probe json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		invalid := InvalidToolUse{ID: acc.id, Name: acc.name, Raw: raw}
		p.invalid = append(p.invalid, invalid)
		p.errored = true
		return nil, &invalid
	}
	block := ToolUseBlock{ID: acc.id, Name: acc.name, Input: json.RawMessage(raw)}
	p.toolUses = append(p.toolUses, block)
	return &block, nil
}

// OnMetadata records a Metadata event. More than one per stream is an
// internal invariant violation; the extras are ignored rather than fatal.
func (p *Parser) OnMetadata() {
	p.metadataSeen++
}

// OnMessageStop records the terminal MessageStop event. More than one per
// stream is ignored (spec §7: best-effort recovery, never panic).
func (p *Parser) OnMessageStop(stopReason string) {
	p.messageStops++
}

// OnStreamError marks the stream as terminally errored (spec §4.1:
// "StreamError is terminal: no further events accepted").
func (p *Parser) OnStreamError(err *StreamError) {
	p.fail(err)
}

func (p *Parser) fail(err *StreamError) {
	if p.streamErr == nil {
		p.streamErr = err
	}
	p.errored = true
}

// End computes the ResponseStreamEnd result (spec §4.1): the stream error
// takes precedence, then any accumulated invalid tool uses, else a
// successful assistant message.
func (p *Parser) End() Result {
	if p.streamErr != nil {
		return Result{Err: p.streamErr}
	}
	if len(p.invalid) > 0 {
		return Result{Err: &InvalidJSONError{
			InvalidTools:  append([]InvalidToolUse(nil), p.invalid...),
			AssistantText: p.text.String(),
		}}
	}
	return Result{Message: &AssistantMessage{
		Text:     p.text.String(),
		ToolUses: append([]ToolUseBlock(nil), p.toolUses...),
	}}
}

// Errored reports whether the stream has been marked errored, either by an
// explicit StreamError or by an invalid tool-use JSON parse failure.
func (p *Parser) Errored() bool {
	return p.errored
}
