package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
workspace:
  enabled: true
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
workspace:
  enabled: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
}

func TestLoadValidatesWorkspaceMaxChars(t *testing.T) {
	path := writeConfig(t, `
workspace:
  enabled: true
  max_chars: -5
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "workspace.max_chars") {
		t.Fatalf("expected workspace.max_chars error, got %v", err)
	}
}

func TestLoadValidatesSessionMaxHistory(t *testing.T) {
	path := writeConfig(t, `
session:
  max_history: -1
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_history") {
		t.Fatalf("expected max_history error, got %v", err)
	}
}

func TestLoadDefaultsSessionMaxHistory(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Session.MaxHistory != 250 {
		t.Fatalf("expected default max_history 250, got %d", cfg.Session.MaxHistory)
	}
}

func TestLoadValidatesApprovalProfile(t *testing.T) {
	path := writeConfig(t, `
tools:
  execution:
    approval:
      profile: invalid
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "approval.profile") {
		t.Fatalf("expected approval.profile error, got %v", err)
	}
}

func TestLoadValidApprovalProfile(t *testing.T) {
	profiles := []string{"coding", "messaging", "readonly", "full", "minimal"}
	for _, profile := range profiles {
		t.Run(profile, func(t *testing.T) {
			path := writeConfig(t, `
tools:
  execution:
    approval:
      profile: `+profile+`
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

			if _, err := Load(path); err != nil {
				t.Fatalf("expected config to load with profile %q, got %v", profile, err)
			}
		})
	}
}

func TestLoadAppliesLogLevelOverride(t *testing.T) {
	t.Setenv("FORGE_LOG_LEVEL", "debug")

	path := writeConfig(t, `
logging:
  level: info
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected log level override, got %q", cfg.Logging.Level)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
