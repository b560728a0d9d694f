package main

import (
	"fmt"
	"strings"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/agent/providers"
	"github.com/forgecode/forge/internal/agent/routing"
	"github.com/forgecode/forge/internal/config"
)

// buildProviders constructs one agent.LLMProvider per configured entry in
// cfg.LLM.Providers, keyed by provider id (e.g. "anthropic", "openai").
func buildProviders(cfg config.LLMConfig) (map[string]agent.LLMProvider, error) {
	built := make(map[string]agent.LLMProvider, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		provider, err := buildProvider(id, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", id, err)
		}
		built[id] = provider
	}
	return built, nil
}

func buildProvider(id string, pc config.LLMProviderConfig) (agent.LLMProvider, error) {
	switch strings.ToLower(id) {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(pc.APIKey), nil
	case "google", "gemini":
		return providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
		})
	case "bedrock":
		return providers.NewBedrockProvider(providers.BedrockConfig{
			DefaultModel: pc.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want anthropic, openai, google, or bedrock)", id)
	}
}

// selectProvider resolves the agent.LLMProvider to drive the runtime: routing
// rules get a routing.Router, a plain fallback chain gets a
// FailoverOrchestrator, and a single configured provider is returned as-is.
func selectProvider(cfg config.LLMConfig) (agent.LLMProvider, error) {
	built, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	if len(built) == 0 {
		return nil, fmt.Errorf("no llm providers configured")
	}

	defaultID := strings.ToLower(strings.TrimSpace(cfg.DefaultProvider))
	if defaultID == "" {
		for id := range built {
			defaultID = id
			break
		}
	}
	if _, ok := built[defaultID]; !ok {
		return nil, fmt.Errorf("llm.default_provider %q has no matching entry in llm.providers", cfg.DefaultProvider)
	}

	if len(cfg.FallbackChain) == 0 && !cfg.Routing.Enabled {
		return built[defaultID], nil
	}

	// A fallback chain with no rule-based routing is handled by the
	// FailoverOrchestrator directly: it retries/circuit-breaks across an
	// ordered provider list without the rule-matching machinery Router
	// provides, which is unnecessary when there are no routing.Rules.
	if len(cfg.FallbackChain) > 0 && !cfg.Routing.Enabled {
		return buildFailoverChain(built, defaultID, cfg.FallbackChain), nil
	}

	rules := make([]routing.Rule, 0, len(cfg.Routing.Rules))
	for _, rr := range cfg.Routing.Rules {
		rules = append(rules, routing.Rule{
			Name:   rr.Name,
			Match:  routing.Match{Patterns: rr.Match.Patterns, Tags: rr.Match.Tags},
			Target: routing.Target{Provider: rr.Target.Provider, Model: rr.Target.Model},
		})
	}

	fallback := routing.Target{Provider: cfg.Routing.Fallback.Provider, Model: cfg.Routing.Fallback.Model}
	if fallback.Provider == "" && len(cfg.FallbackChain) > 0 {
		// Router.Config models a single fallback target; an ordered
		// FallbackChain collapses to its first entry, the router's own
		// health-cooldown logic then falls through to the remaining
		// built providers via DefaultProvider reselection on failure.
		fallback.Provider = cfg.FallbackChain[0]
	}

	routerCfg := routing.Config{
		DefaultProvider: defaultID,
		PreferLocal:     cfg.Routing.PreferLocal,
		LocalProviders:  []string{"ollama"},
		Rules:           rules,
		Fallback:        fallback,
		FailureCooldown: cfg.Routing.UnhealthyCooldown,
	}
	return routing.NewRouter(routerCfg, built), nil
}

// buildFailoverChain wraps defaultID's provider in a FailoverOrchestrator,
// adding each configured fallback (skipping duplicates and unknown ids) as
// an ordered retry target.
func buildFailoverChain(built map[string]agent.LLMProvider, defaultID string, chain []string) agent.LLMProvider {
	orch := agent.NewFailoverOrchestrator(built[defaultID], agent.DefaultFailoverConfig())
	seen := map[string]bool{defaultID: true}
	for _, id := range chain {
		id = strings.ToLower(strings.TrimSpace(id))
		if seen[id] {
			continue
		}
		if p, ok := built[id]; ok {
			orch.AddProvider(p)
			seen[id] = true
		}
	}
	return orch
}
