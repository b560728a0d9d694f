package config

import "time"

// ToolsConfig controls tool-execution policy for the agent runtime. Concrete
// tool implementations (browser, sandbox, web search, ...) are owned by the
// processes that register them, not by this runtime's config surface.
type ToolsConfig struct {
	Policies  ToolPoliciesConfig  `yaml:"policies"`
	Execution ToolExecutionConfig `yaml:"execution"`
	Elevated  ElevatedConfig      `yaml:"elevated"`
}

// ToolPoliciesConfig defines default allow/deny policies for tools.
type ToolPoliciesConfig struct {
	// Default policy behavior: "allow" or "deny".
	Default string `yaml:"default"`
	// Rules define per-tool allow/deny behavior.
	Rules []ToolPolicyRule `yaml:"rules"`
}

// ToolPolicyRule defines a policy action for a tool.
type ToolPolicyRule struct {
	Tool   string `yaml:"tool"`
	Action string `yaml:"action"` // "allow" | "deny"
}

// ToolExecutionConfig controls runtime tool execution behavior (spec §4.3,
// §4.6.3).
type ToolExecutionConfig struct {
	MaxIterations   int                   `yaml:"max_iterations"`
	Parallelism     int                   `yaml:"parallelism"`
	Timeout         time.Duration         `yaml:"timeout"`
	MaxAttempts     int                   `yaml:"max_attempts"`
	RetryBackoff    time.Duration         `yaml:"retry_backoff"`
	DisableEvents   bool                  `yaml:"disable_events"`
	MaxToolCalls    int                   `yaml:"max_tool_calls"`
	RequireApproval []string              `yaml:"require_approval"`
	Async           []string              `yaml:"async"`
	Approval        ApprovalConfig        `yaml:"approval"`
	ResultGuard     ToolResultGuardConfig `yaml:"result_guard"`
}

// ApprovalConfig controls the Allow/Ask/Deny tool permission evaluation
// (spec §4.6.3 step 3).
type ApprovalConfig struct {
	// Profile is a pre-configured tool access level.
	// Valid profiles: "coding", "messaging", "readonly", "full", "minimal".
	Profile string `yaml:"profile"`

	// Allowlist contains tools that are always allowed (no approval needed).
	// Supports patterns like "mcp:*", "read_*", "*" (all), and "#agent_name".
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tools that are always denied.
	Denylist []string `yaml:"denylist"`

	// SafeBins are stdin-only tools that are safe to auto-allow.
	SafeBins []string `yaml:"safe_bins"`

	// AskFallback queues approval when no approval channel is available
	// instead of denying outright.
	AskFallback *bool `yaml:"ask_fallback"`

	// DefaultDecision when no rule matches: "allowed", "denied", or "pending".
	DefaultDecision string `yaml:"default_decision"`

	// RequestTTL is how long a pending approval request remains valid.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

// ToolResultGuardConfig controls redaction of tool results before they are
// appended to the conversation (spec §3 ToolResultBlock).
type ToolResultGuardConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxChars        int      `yaml:"max_chars"`
	Denylist        []string `yaml:"denylist"`
	RedactPatterns  []string `yaml:"redact_patterns"`
	RedactionText   string   `yaml:"redaction_text"`
	TruncateSuffix  string   `yaml:"truncate_suffix"`
	SanitizeSecrets bool     `yaml:"sanitize_secrets"`
}

// ElevatedConfig controls the trust-all-tools bypass (spec §4.6.3 step 3,
// §6 --trust-all-tools).
type ElevatedConfig struct {
	// Enabled gates the bypass. When nil, elevated execution is disabled.
	Enabled *bool `yaml:"enabled"`

	// Tools lists tool-name patterns the bypass applies to. Empty means all
	// tools (equivalent to --trust-all-tools with no scoping).
	Tools []string `yaml:"tools"`
}
