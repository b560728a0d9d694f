package config

// WorkspaceConfig controls the workspace context the agent runtime reads
// when building its system prompt (spec §5 cwd/environment context).
type WorkspaceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxChars   int    `yaml:"max_chars"`
	AgentsFile string `yaml:"agents_file"`
	ToolsFile  string `yaml:"tools_file"`
}
