package hooks

import (
	"testing"
	"time"

	"github.com/forgecode/forge/pkg/models"
)

func TestResultCache_NoTTLNeverCaches(t *testing.T) {
	c := NewResultCache()
	cfg := models.HookConfig{Kind: models.HookKindShellCommand, Command: "echo hi"}
	c.Put(cfg, CommandResult{Output: "hi"})
	if _, ok := c.Get(cfg); ok {
		t.Fatalf("ttl<=0 must never cache")
	}
}

func TestResultCache_HitWithinTTL(t *testing.T) {
	c := NewResultCache()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: "echo hi",
		Opts:    models.HookOpts{CacheTTLSeconds: 60},
	}
	c.Put(cfg, CommandResult{Output: "hi"})
	result, ok := c.Get(cfg)
	if !ok {
		t.Fatalf("expected cache hit within ttl window")
	}
	if result.Output != "hi" {
		t.Fatalf("unexpected cached output: %q", result.Output)
	}
}

func TestResultCache_ExpiresAfterTTL(t *testing.T) {
	c := NewResultCache()
	cfg := models.HookConfig{
		Kind:    models.HookKindShellCommand,
		Command: "echo hi",
		Opts:    models.HookOpts{CacheTTLSeconds: 60},
	}
	c.mu.Lock()
	c.entries[cfg.CacheKey()] = cacheEntry{
		result: CommandResult{Output: "stale"},
		expiry: time.Now().Add(-time.Second),
	}
	c.mu.Unlock()

	if _, ok := c.Get(cfg); ok {
		t.Fatalf("expired entry must not be returned")
	}
}

func TestResultCache_DistinctConfigsDoNotCollide(t *testing.T) {
	c := NewResultCache()
	a := models.HookConfig{Kind: models.HookKindShellCommand, Command: "echo a", Opts: models.HookOpts{CacheTTLSeconds: 60}}
	b := models.HookConfig{Kind: models.HookKindShellCommand, Command: "echo b", Opts: models.HookOpts{CacheTTLSeconds: 60}}
	c.Put(a, CommandResult{Output: "a"})
	c.Put(b, CommandResult{Output: "b"})

	ra, _ := c.Get(a)
	rb, _ := c.Get(b)
	if ra.Output != "a" || rb.Output != "b" {
		t.Fatalf("cache entries collided: a=%q b=%q", ra.Output, rb.Output)
	}
}

func TestResultCache_Prune(t *testing.T) {
	c := NewResultCache()
	cfg := models.HookConfig{Kind: models.HookKindShellCommand, Command: "echo hi", Opts: models.HookOpts{CacheTTLSeconds: 60}}
	c.mu.Lock()
	c.entries[cfg.CacheKey()] = cacheEntry{result: CommandResult{Output: "stale"}, expiry: time.Now().Add(-time.Second)}
	c.mu.Unlock()

	if n := c.Prune(); n != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", n)
	}
	if _, ok := c.Get(cfg); ok {
		t.Fatalf("pruned entry must not be returned")
	}
}
