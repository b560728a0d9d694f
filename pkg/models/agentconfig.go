package models

import "time"

// HookTrigger is one of the four points at which a hook may run (spec §3).
type HookTrigger string

const (
	HookAgentSpawn       HookTrigger = "agentSpawn"
	HookUserPromptSubmit HookTrigger = "userPromptSubmit"
	HookPreToolUse       HookTrigger = "preToolUse"
	HookPostToolUse      HookTrigger = "postToolUse"
)

// Default hook execution options (spec §3 HookConfig.opts).
const (
	DefaultHookTimeoutMs     = 10_000
	DefaultHookMaxOutputSize = 10 * 1024
	DefaultHookCacheTTLSecs  = 0
)

// HookOpts carries the per-hook execution options from spec §3.
type HookOpts struct {
	TimeoutMs      int    `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	MaxOutputSize  int    `yaml:"max_output_size,omitempty" json:"max_output_size,omitempty"`
	CacheTTLSeconds int   `yaml:"cache_ttl_seconds,omitempty" json:"cache_ttl_seconds,omitempty"`
	Matcher        string `yaml:"matcher,omitempty" json:"matcher,omitempty"`
}

// WithDefaults returns a copy of o with zero fields replaced by the spec's
// documented defaults.
func (o HookOpts) WithDefaults() HookOpts {
	if o.TimeoutMs <= 0 {
		o.TimeoutMs = DefaultHookTimeoutMs
	}
	if o.MaxOutputSize <= 0 {
		o.MaxOutputSize = DefaultHookMaxOutputSize
	}
	return o
}

// HookKind discriminates the HookConfig tagged union.
type HookKind string

const (
	HookKindShellCommand HookKind = "shell_command"
	HookKindTool         HookKind = "tool"
)

// HookConfig is the ShellCommand{command,opts} | Tool{tool_name,args,opts}
// variant of spec §3. Exactly one of Command or (ToolName) is meaningful,
// selected by Kind.
type HookConfig struct {
	Kind HookKind `yaml:"kind" json:"kind"`

	// ShellCommand variant.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Tool variant.
	ToolName string         `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`
	Args     map[string]any `yaml:"args,omitempty" json:"args,omitempty"`

	Opts HookOpts `yaml:"opts,omitempty" json:"opts,omitempty"`
}

// CacheKey returns a value stable across equal HookConfigs, suitable as a
// map key for the hook result cache (spec §4.3, §9 "plain map keyed by a
// structurally-hashable hook configuration").
func (h HookConfig) CacheKey() string {
	args := ""
	for k := range h.Args {
		args += k + "="
	}
	return string(h.Kind) + "|" + h.Command + "|" + h.ToolName + "|" + args + "|" + h.Opts.Matcher
}

// McpTransportKind discriminates the McpServerConfig tagged union.
type McpTransportKind string

const (
	McpTransportLocal          McpTransportKind = "local"
	McpTransportStreamableHTTP McpTransportKind = "streamable_http"
)

// McpServerConfig is the Local{command,args,env?,timeout_ms,disabled} |
// StreamableHTTP{url,headers,timeout_ms} variant of spec §3.
type McpServerConfig struct {
	Kind McpTransportKind `yaml:"kind" json:"kind"`

	// Local variant.
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args     []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Disabled bool              `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// StreamableHTTP variant.
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	TimeoutMs int `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// ToolSettings holds per-tool configuration overrides declared in
// AgentConfig (timeouts, retries, and the tool's permission default).
type ToolSettings struct {
	RequireApproval bool           `yaml:"require_approval,omitempty" json:"require_approval,omitempty"`
	Denied          bool           `yaml:"denied,omitempty" json:"denied,omitempty"`
	Extra           map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// ResourceRef is a resource file reference declared in AgentConfig,
// recognising file://PATH and file://GLOB forms (spec §4.6.5).
type ResourceRef string

// AgentConfig is the immutable-per-session configuration of spec §3:
// name, system prompt, declared tool patterns, tool aliases/settings,
// allowed-tool set, resource references, MCP server definitions, and
// hook configurations keyed by trigger.
type AgentConfig struct {
	Name         string   `yaml:"name" json:"name"`
	SystemPrompt string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`

	// ToolPatterns recognises the grammar of spec §4.6.6: "*", "@*",
	// "@server_name", "@server_name/tool_name", "@server_name/glob",
	// "built_in_name", "built_in_glob", "#agent_name", "#agent_glob".
	ToolPatterns []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	ToolAliases  map[string]string       `yaml:"tool_aliases,omitempty" json:"tool_aliases,omitempty"`
	ToolSettings map[string]ToolSettings `yaml:"tool_settings,omitempty" json:"tool_settings,omitempty"`
	AllowedTools []string                `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`

	Resources []ResourceRef `yaml:"resources,omitempty" json:"resources,omitempty"`

	McpServers map[string]McpServerConfig `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`

	Hooks map[HookTrigger][]HookConfig `yaml:"hooks,omitempty" json:"hooks,omitempty"`

	UseLegacyMcpJSON bool `yaml:"use_legacy_mcp_json,omitempty" json:"use_legacy_mcp_json,omitempty"`

	McpInitTimeout time.Duration `yaml:"mcp_init_timeout,omitempty" json:"mcp_init_timeout,omitempty"`
}
