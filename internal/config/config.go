package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/forgecode/forge/internal/mcp"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the agent runtime process: the
// ambient stack (logging, tracing) plus the domain stack this runtime drives
// (LLM providers, MCP servers, tool execution policy). Per-agent behavior
// (system prompt, tool allowlist, hooks) lives in AgentConfig, loaded
// separately per spec §3.
type Config struct {
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	Session       SessionConfig       `yaml:"session"`
	LLM           LLMConfig           `yaml:"llm"`
	MCP           mcp.Config          `yaml:"mcp"`
	Tools         ToolsConfig         `yaml:"tools"`
	Artifacts     ArtifactConfig      `yaml:"artifacts"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("FORGE_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	for name, provider := range cfg.LLM.Providers {
		envKey := "FORGE_" + strings.ToUpper(name) + "_API_KEY"
		if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
			provider.APIKey = value
			cfg.LLM.Providers[name] = provider
		}
	}
}

func applyDefaults(cfg *Config) {
	applyWorkspaceDefaults(&cfg.Workspace)
	applyToolsDefaults(cfg)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = 250
	}
	if cfg.Session.DefaultAgentID == "" {
		cfg.Session.DefaultAgentID = "main"
	}
}

func applyWorkspaceDefaults(cfg *WorkspaceConfig) {
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 4000
	}
	if cfg.AgentsFile == "" {
		cfg.AgentsFile = "AGENTS.md"
	}
}

func applyToolsDefaults(cfg *Config) {
	exec := &cfg.Tools.Execution
	if exec.MaxIterations == 0 {
		exec.MaxIterations = 50
	}
	if exec.Parallelism == 0 {
		exec.Parallelism = 4
	}
	if exec.Timeout == 0 {
		exec.Timeout = 2 * time.Minute
	}
	if exec.MaxAttempts == 0 {
		exec.MaxAttempts = 1
	}
	if exec.Approval.DefaultDecision == "" {
		exec.Approval.DefaultDecision = "pending"
	}
	if exec.Approval.RequestTTL == 0 {
		exec.Approval.RequestTTL = 5 * time.Minute
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.Providers == nil {
		cfg.Providers = map[string]LLMProviderConfig{}
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// ConfigValidationError collects all configuration issues found during Load.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Workspace.MaxChars < 0 {
		issues = append(issues, "workspace.max_chars must be >= 0")
	}
	if cfg.Session.MaxHistory < 0 {
		issues = append(issues, "session.max_history must be >= 0")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if cfg.Tools.Execution.MaxIterations < 0 {
		issues = append(issues, "tools.execution.max_iterations must be >= 0")
	}
	if cfg.Tools.Execution.Parallelism < 0 {
		issues = append(issues, "tools.execution.parallelism must be >= 0")
	}
	if cfg.Tools.Execution.Timeout < 0 {
		issues = append(issues, "tools.execution.timeout must be >= 0")
	}
	if cfg.Tools.Execution.MaxAttempts < 0 {
		issues = append(issues, "tools.execution.max_attempts must be >= 0")
	}
	if cfg.Tools.Execution.RetryBackoff < 0 {
		issues = append(issues, "tools.execution.retry_backoff must be >= 0")
	}
	if cfg.Tools.Execution.MaxToolCalls < 0 {
		issues = append(issues, "tools.execution.max_tool_calls must be >= 0")
	}
	if profile := strings.ToLower(strings.TrimSpace(cfg.Tools.Execution.Approval.Profile)); profile != "" {
		switch profile {
		case "coding", "messaging", "readonly", "full", "minimal":
		default:
			issues = append(issues, "tools.execution.approval.profile must be \"coding\", \"messaging\", \"readonly\", \"full\", or \"minimal\"")
		}
	}

	if pluginIssues := pluginValidationIssues(cfg); len(pluginIssues) > 0 {
		issues = append(issues, pluginIssues...)
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}

	return nil
}
