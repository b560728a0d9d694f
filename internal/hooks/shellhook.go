package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/forgecode/forge/pkg/models"
)

// userPromptEnvVar is the environment variable a ShellCommand hook reads the
// sanitized user prompt from (spec §4.3, §6).
const userPromptEnvVar = "USER_PROMPT"

// maxUserPromptChars is the truncation length applied to USER_PROMPT (spec §4.3).
const maxUserPromptChars = 4096

// truncatedSuffix is appended, literally, when hook output exceeds max_output_size (spec §6).
const truncatedSuffix = " ... truncated"

// ShellPayload is the JSON object piped to a ShellCommand hook's stdin (spec §6).
// Field names follow the original source's camelCase wire convention (SPEC_FULL.md,
// "Supplemented features"): only hookEventName is camelCase by spec mandate, the
// remaining keys are the ones §6 names verbatim.
type ShellPayload struct {
	HookEventName string          `json:"hookEventName"`
	Cwd           string          `json:"cwd"`
	Prompt        string          `json:"prompt,omitempty"`
	ToolName      string          `json:"tool_name,omitempty"`
	ToolInput     json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse  json.RawMessage `json:"tool_response,omitempty"`
}

// CommandResult is the outcome of a ShellCommand hook invocation (spec §4.3
// "Result: Command{exit_code, output}").
type CommandResult struct {
	ExitCode int
	Output   string
	// Blocked is true when ExitCode == 2, meaningful only for PreToolUse (spec §4.3 step 4, §6).
	Blocked bool
}

// ShellRunner executes ShellCommand hooks as subprocesses per spec §4.3/§6:
// bash -c on POSIX, cmd /C on Windows, JSON payload on stdin, USER_PROMPT env
// var, timeout_ms enforcement, stdout-or-stderr selection by exit code, and
// max_output_size truncation.
type ShellRunner struct{}

// NewShellRunner constructs a ShellRunner. It holds no state; one instance may
// be shared across every hook invocation.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run executes cfg (which must be a ShellCommand-kind HookConfig) with the
// given payload and returns its Command result.
func (r *ShellRunner) Run(ctx context.Context, cfg models.HookConfig, payload ShellPayload) (CommandResult, error) {
	if cfg.Kind != models.HookKindShellCommand {
		return CommandResult{}, fmt.Errorf("hooks: Run called with non-shell HookConfig kind %q", cfg.Kind)
	}
	opts := cfg.Opts.WithDefaults()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return CommandResult{}, fmt.Errorf("hooks: marshal hook payload: %w", err)
	}

	cmd := shellCommand(runCtx, cfg.Command)
	cmd.Env = append(os.Environ(), userPromptEnvVar+"="+sanitizeUserPrompt(payload.Prompt))
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return CommandResult{}, fmt.Errorf("hooks: command timed out after %dms", opts.TimeoutMs)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return CommandResult{}, fmt.Errorf("hooks: run hook command: %w", runErr)
		}
	}

	raw := stdout.Bytes()
	if exitCode != 0 {
		raw = stderr.Bytes()
	}

	return CommandResult{
		ExitCode: exitCode,
		Output:   truncateOutput(raw, opts.MaxOutputSize),
		Blocked:  exitCode == 2,
	}, nil
}

// shellCommand builds the per-OS shell invocation (spec §4.3: "bash -c on
// POSIX, cmd /C on Windows").
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "bash", "-c", command)
}

// sanitizeUserPrompt strips control characters other than \n \r \t and
// truncates to maxUserPromptChars runes, per spec §4.3.
func sanitizeUserPrompt(prompt string) string {
	runes := make([]rune, 0, len(prompt))
	for _, ch := range prompt {
		if ch == '\n' || ch == '\r' || ch == '\t' || ch >= 0x20 {
			runes = append(runes, ch)
		}
	}
	if len(runes) > maxUserPromptChars {
		runes = runes[:maxUserPromptChars]
	}
	return string(runes)
}

// truncateOutput enforces max_output_size, appending the literal " ... truncated"
// marker when the raw output exceeds it (spec §4.3, §6, §8).
func truncateOutput(raw []byte, max int) string {
	if max <= 0 || len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + truncatedSuffix
}
