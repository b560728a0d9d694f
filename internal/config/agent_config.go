package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/forgecode/forge/pkg/models"
	"gopkg.in/yaml.v3"
)

// LoadAgentConfig reads and decodes one models.AgentConfig from path (spec
// §3 AgentConfig, §6 CLI "--agent" flag), following the same
// ExpandEnv/KnownFields/single-document discipline as Load.
func LoadAgentConfig(path string) (*models.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg models.AgentConfig
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse agent config: expected single document")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = strings.TrimSuffix(strings.TrimSuffix(baseName(path), ".yaml"), ".yml")
	}
	return &cfg, nil
}

func baseName(path string) string {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
