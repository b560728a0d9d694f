package hooks

import (
	"sync"
	"time"

	"github.com/forgecode/forge/pkg/models"
)

// ResultCache is the hook result cache of spec §4.3/§9: "plain map keyed by a
// structurally-hashable hook configuration; TTL checked on read." Entries are
// only stored for hooks with cache_ttl_seconds > 0 — a ttl of 0 (the default)
// means "never cache", the reading that makes the §8 invariant ("executed at
// most once per (HookConfig, ttl window)") meaningful rather than vacuous.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result CommandResult
	expiry time.Time
}

// NewResultCache constructs an empty ResultCache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached result for cfg if one exists and has not expired.
// A miss is reported (ok=false) for any HookConfig with CacheTTLSeconds <= 0.
func (c *ResultCache) Get(cfg models.HookConfig) (result CommandResult, ok bool) {
	if cfg.Opts.CacheTTLSeconds <= 0 {
		return CommandResult{}, false
	}
	key := cfg.CacheKey()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return CommandResult{}, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.entries, key)
		return CommandResult{}, false
	}
	return entry.result, true
}

// Put stores result for cfg, keyed until now + cache_ttl_seconds. No-op for
// HookConfigs with CacheTTLSeconds <= 0.
func (c *ResultCache) Put(cfg models.HookConfig, result CommandResult) {
	if cfg.Opts.CacheTTLSeconds <= 0 {
		return
	}
	key := cfg.CacheKey()
	expiry := time.Now().Add(time.Duration(cfg.Opts.CacheTTLSeconds) * time.Second)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expiry: expiry}
}

// Prune removes every expired entry and reports how many were removed.
// Callers may run this periodically; Get/Put alone already enforce
// per-key expiry lazily, so calling Prune is optional.
func (c *ResultCache) Prune() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
