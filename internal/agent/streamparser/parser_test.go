package streamparser

import (
	"testing"
)

func TestParser_SuccessfulTextAndToolUse(t *testing.T) {
	p := New()
	p.OnMessageStart("assistant")

	if got := p.OnTextDelta("Hello, "); got != "Hello, " {
		t.Fatalf("expected delta echoed back, got %q", got)
	}
	if got := p.OnTextDelta("world"); got != "world" {
		t.Fatalf("expected delta echoed back, got %q", got)
	}

	p.OnContentBlockStartToolUse("tool-1", "read_file")
	p.OnToolInputDelta(`{"path":`)
	p.OnToolInputDelta(`"a.go"}`)
	block, invalid := p.OnContentBlockStop()
	if invalid != nil {
		t.Fatalf("expected a valid tool use, got invalid: %+v", invalid)
	}
	if block == nil || block.ID != "tool-1" || block.Name != "read_file" {
		t.Fatalf("unexpected tool use block: %+v", block)
	}

	p.OnMessageStop("end_turn")
	result := p.End()
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Message == nil {
		t.Fatal("expected a successful assistant message")
	}
	if result.Message.Text != "Hello, world" {
		t.Fatalf("expected accumulated text %q, got %q", "Hello, world", result.Message.Text)
	}
	if len(result.Message.ToolUses) != 1 {
		t.Fatalf("expected one tool use, got %d", len(result.Message.ToolUses))
	}
}

func TestParser_InvalidToolUseJSON(t *testing.T) {
	p := New()
	p.OnMessageStart("assistant")
	p.OnTextDelta("thinking...")

	p.OnContentBlockStartToolUse("tool-2", "run_shell")
	p.OnToolInputDelta(`{"command": "ls" `) // missing closing brace
	block, invalid := p.OnContentBlockStop()
	if block != nil {
		t.Fatalf("expected no valid block, got %+v", block)
	}
	if invalid == nil || invalid.ID != "tool-2" {
		t.Fatalf("expected an invalid tool use for tool-2, got %+v", invalid)
	}

	p.OnMessageStop("end_turn")
	result := p.End()
	if result.Message != nil {
		t.Fatalf("expected no successful message, got %+v", result.Message)
	}
	ije, ok := result.Err.(*InvalidJSONError)
	if !ok {
		t.Fatalf("expected *InvalidJSONError, got %T: %v", result.Err, result.Err)
	}
	if len(ije.InvalidTools) != 1 || ije.InvalidTools[0].ID != "tool-2" {
		t.Fatalf("unexpected invalid tools: %+v", ije.InvalidTools)
	}
	if ije.AssistantText != "thinking..." {
		t.Fatalf("expected preserved assistant text, got %q", ije.AssistantText)
	}
	if !p.Errored() {
		t.Fatal("expected Errored() to be true after an invalid tool use")
	}
}

func TestParser_StreamErrorTakesPrecedenceOverInvalidJSON(t *testing.T) {
	p := New()
	p.OnMessageStart("assistant")

	p.OnContentBlockStartToolUse("tool-3", "edit_file")
	p.OnToolInputDelta(`not json at all`)
	p.OnContentBlockStop()

	p.OnStreamError(&StreamError{Class: ClassServiceFailure, Message: "upstream 500"})

	result := p.End()
	se, ok := result.Err.(*StreamError)
	if !ok {
		t.Fatalf("expected *StreamError to take precedence, got %T: %v", result.Err, result.Err)
	}
	if se.Class != ClassServiceFailure {
		t.Fatalf("expected ClassServiceFailure, got %v", se.Class)
	}
}

func TestParser_FirstStreamErrorWins(t *testing.T) {
	p := New()
	p.OnStreamError(&StreamError{Class: ClassThrottling, Message: "first"})
	p.OnStreamError(&StreamError{Class: ClassOther, Message: "second"})

	result := p.End()
	se, ok := result.Err.(*StreamError)
	if !ok {
		t.Fatalf("expected *StreamError, got %T", result.Err)
	}
	if se.Class != ClassThrottling || se.Message != "first" {
		t.Fatalf("expected the first error to win, got %+v", se)
	}
}

func TestParser_MessageStartWrongRoleIsValidationError(t *testing.T) {
	p := New()
	p.OnMessageStart("user")

	result := p.End()
	se, ok := result.Err.(*StreamError)
	if !ok {
		t.Fatalf("expected *StreamError, got %T", result.Err)
	}
	if se.Class != ClassValidation {
		t.Fatalf("expected ClassValidation, got %v", se.Class)
	}
}

func TestParser_ContentBlockStopWithNoActiveAccumulatorIsNoop(t *testing.T) {
	p := New()
	p.OnMessageStart("assistant")
	p.OnTextDelta("plain text only")

	block, invalid := p.OnContentBlockStop()
	if block != nil || invalid != nil {
		t.Fatalf("expected a no-op stop, got block=%+v invalid=%+v", block, invalid)
	}

	result := p.End()
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Message.ToolUses) != 0 {
		t.Fatalf("expected no tool uses, got %d", len(result.Message.ToolUses))
	}
}

func TestParser_ToolInputDeltaDroppedWithoutActiveAccumulator(t *testing.T) {
	p := New()
	p.OnMessageStart("assistant")
	p.OnToolInputDelta(`{"should":"be dropped"}`)

	result := p.End()
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Message.ToolUses) != 0 {
		t.Fatalf("expected no tool uses since no accumulator was active, got %d", len(result.Message.ToolUses))
	}
}

func TestStreamError_IsRetryable(t *testing.T) {
	timeout := &StreamError{Class: ClassStreamTimeout}
	if !timeout.IsRetryable() {
		t.Fatal("expected ClassStreamTimeout to be retryable")
	}
	other := &StreamError{Class: ClassServiceFailure}
	if other.IsRetryable() {
		t.Fatal("expected ClassServiceFailure to not be retryable")
	}
}
