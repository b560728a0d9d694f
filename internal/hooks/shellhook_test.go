package hooks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/forgecode/forge/pkg/models"
)

func TestShellRunner_SuccessReadsStdout(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `echo -n "hello from hook"`,
	}
	result, err := r.Run(context.Background(), cfg, ShellPayload{HookEventName: "preToolUse", Cwd: "/tmp"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if result.Output != "hello from hook" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if result.Blocked {
		t.Fatalf("exit 0 must never be Blocked")
	}
}

func TestShellRunner_ExitTwoBlocks(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `echo -n "not allowed here" 1>&2 && exit 2`,
	}
	result, err := r.Run(context.Background(), cfg, ShellPayload{HookEventName: "preToolUse"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ExitCode != 2 || !result.Blocked {
		t.Fatalf("expected Blocked exit code 2, got %+v", result)
	}
	if result.Output != "not allowed here" {
		t.Fatalf("exit_code!=0 must read from stderr: got %q", result.Output)
	}
}

func TestShellRunner_NonZeroReadsStderr(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `echo -n "boom" 1>&2 && exit 1`,
	}
	result, err := r.Run(context.Background(), cfg, ShellPayload{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", result.ExitCode)
	}
	if result.Output != "boom" {
		t.Fatalf("expected stderr output, got %q", result.Output)
	}
}

func TestShellRunner_Timeout(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `sleep 5`,
		Opts:    models.HookOpts{TimeoutMs: 50},
	}
	_, err := r.Run(context.Background(), cfg, ShellPayload{})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestShellRunner_TruncatesOutput(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `printf 'abcdefghij'`,
		Opts:    models.HookOpts{MaxOutputSize: 4},
	}
	result, err := r.Run(context.Background(), cfg, ShellPayload{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := "abcd" + truncatedSuffix
	if result.Output != want {
		t.Fatalf("expected truncated output %q, got %q", want, result.Output)
	}
}

func TestShellRunner_UserPromptEnvSanitizedAndTruncated(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `printf '%s' "$USER_PROMPT"`,
	}
	dirty := "line one\ncarriage\rtab\tbell\x07null\x00done"
	result, err := r.Run(context.Background(), cfg, ShellPayload{Prompt: dirty})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.ContainsAny(result.Output, "\x07\x00") {
		t.Fatalf("control characters other than \\n\\r\\t must be stripped: %q", result.Output)
	}
	if !strings.Contains(result.Output, "\n") || !strings.Contains(result.Output, "\t") {
		t.Fatalf("newline and tab must survive sanitization: %q", result.Output)
	}
}

func TestSanitizeUserPrompt_TruncatesTo4096(t *testing.T) {
	long := strings.Repeat("a", 5000)
	got := sanitizeUserPrompt(long)
	if len([]rune(got)) != maxUserPromptChars {
		t.Fatalf("expected truncation to %d runes, got %d", maxUserPromptChars, len([]rune(got)))
	}
}

func TestShellRunner_StdinCarriesPayload(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: `cat`,
	}
	result, err := r.Run(context.Background(), cfg, ShellPayload{
		HookEventName: "preToolUse",
		Cwd:           "/workspace",
		ToolName:      "fs_read",
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(result.Output, `"hookEventName":"preToolUse"`) {
		t.Fatalf("expected hookEventName key in stdin payload echoed back, got %q", result.Output)
	}
	if !strings.Contains(result.Output, `"tool_name":"fs_read"`) {
		t.Fatalf("expected tool_name key in stdin payload echoed back, got %q", result.Output)
	}
}

func TestShellRunner_RejectsNonShellKind(t *testing.T) {
	r := NewShellRunner()
	cfg := models.HookConfig{Kind: models.HookKindTool, ToolName: "some_tool"}
	if _, err := r.Run(context.Background(), cfg, ShellPayload{}); err == nil {
		t.Fatalf("expected error for non-shell HookConfig kind")
	}
}

func TestDefaultTimeoutApplied(t *testing.T) {
	opts := models.HookOpts{}.WithDefaults()
	if time.Duration(opts.TimeoutMs)*time.Millisecond != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %v", time.Duration(opts.TimeoutMs)*time.Millisecond)
	}
}
