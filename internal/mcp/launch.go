package mcp

import (
	"context"
	"errors"
	"sync"
)

// LaunchState is the lifecycle of one named MCP server launch (spec §4.4
// "per-server actor owning subprocess lifecycle + MCP handshake").
type LaunchState int

const (
	LaunchNotStarted LaunchState = iota
	LaunchInitializing
	LaunchInitialized
	LaunchFailed
)

// ErrServerCurrentlyInitializing is returned by LaunchServer when a launch
// for the same name is already in flight (spec §4.5 launch_server).
var ErrServerCurrentlyInitializing = errors.New("mcp: server currently initializing")

// ErrServerAlreadyLaunched is returned by LaunchServer when the named server
// already completed initialization successfully.
var ErrServerAlreadyLaunched = errors.New("mcp: server already launched")

// ErrServerNotInitialized is returned by dispatch operations (get_tool_specs,
// get_prompts, execute_tool) against a server that never finished
// initializing (spec §4.5).
var ErrServerNotInitialized = errors.New("mcp: server not initialized")

// InitResult is the terminal payload of one launch: either a successfully
// connected Client (spec's Initialized event) or an error (InitializeError).
type InitResult struct {
	Client *Client
	Err    error
}

type launchEntry struct {
	state   LaunchState
	waiters []chan InitResult
	result  InitResult
}

// launchRegistry tracks one launchEntry per server name, guaranteeing
// uniqueness and deduplicating concurrent launch attempts (spec §4.5: "the
// Manager guarantees unique names").
type launchRegistry struct {
	mu       sync.Mutex
	launches map[string]*launchEntry
}

func newLaunchRegistry() *launchRegistry {
	return &launchRegistry{launches: make(map[string]*launchEntry)}
}

// LaunchServer starts (or joins) the launch of a named MCP server. It
// returns a buffered, single-value channel that resolves once with the
// first Initialized/InitializeError outcome for that name (spec §4.5).
// A second LaunchServer call for a name already LaunchInitializing returns
// ErrServerCurrentlyInitializing; a name already LaunchInitialized returns
// ErrServerAlreadyLaunched. Both carry the same oneshot channel so a caller
// that merely wants the result of an existing launch can still await it.
func (m *Manager) LaunchServer(ctx context.Context, name string, cfg *ServerConfig) (<-chan InitResult, error) {
	if m.launches == nil {
		m.launches = newLaunchRegistry()
	}
	reg := m.launches

	reg.mu.Lock()
	entry, exists := reg.launches[name]
	if !exists {
		entry = &launchEntry{state: LaunchNotStarted}
		reg.launches[name] = entry
	}

	switch entry.state {
	case LaunchInitialized:
		ch := make(chan InitResult, 1)
		ch <- entry.result
		reg.mu.Unlock()
		return ch, ErrServerAlreadyLaunched
	case LaunchInitializing:
		ch := make(chan InitResult, 1)
		entry.waiters = append(entry.waiters, ch)
		reg.mu.Unlock()
		return ch, ErrServerCurrentlyInitializing
	}

	entry.state = LaunchInitializing
	ch := make(chan InitResult, 1)
	entry.waiters = append(entry.waiters, ch)
	reg.mu.Unlock()

	go m.runLaunch(ctx, name, cfg, entry, reg)

	return ch, nil
}

func (m *Manager) runLaunch(ctx context.Context, name string, cfg *ServerConfig, entry *launchEntry, reg *launchRegistry) {
	client := NewClient(cfg, m.logger)
	var result InitResult
	if err := client.Connect(ctx); err != nil {
		result = InitResult{Err: err}
	} else {
		result = InitResult{Client: client}
		m.mu.Lock()
		m.clients[name] = client
		m.mu.Unlock()
	}

	reg.mu.Lock()
	entry.result = result
	if result.Err != nil {
		entry.state = LaunchFailed
	} else {
		entry.state = LaunchInitialized
	}
	waiters := entry.waiters
	entry.waiters = nil
	reg.mu.Unlock()

	for _, w := range waiters {
		w <- result
	}
}

// LaunchState reports the current LaunchState for a server name, or
// LaunchNotStarted if LaunchServer has never been called for it.
func (m *Manager) LaunchState(name string) LaunchState {
	if m.launches == nil {
		return LaunchNotStarted
	}
	m.launches.mu.Lock()
	defer m.launches.mu.Unlock()
	entry, ok := m.launches.launches[name]
	if !ok {
		return LaunchNotStarted
	}
	return entry.state
}

// GetToolSpecs returns the tool specs of a launched server, or
// ErrServerNotInitialized if the server never finished initializing (spec
// §4.5 get_tool_specs).
func (m *Manager) GetToolSpecs(name string) ([]*MCPTool, error) {
	client, ok := m.Client(name)
	if !ok {
		return nil, ErrServerNotInitialized
	}
	return client.Tools(), nil
}

// GetPrompts returns the prompts of a launched server, or
// ErrServerNotInitialized (spec §4.5 get_prompts).
func (m *Manager) GetPrompts(name string) ([]*MCPPrompt, error) {
	client, ok := m.Client(name)
	if !ok {
		return nil, ErrServerNotInitialized
	}
	return client.Prompts(), nil
}

// ExecuteTool dispatches a tool call to a launched server, or returns
// ErrServerNotInitialized (spec §4.5 execute_tool).
func (m *Manager) ExecuteTool(ctx context.Context, name string, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	client, ok := m.Client(name)
	if !ok {
		return nil, ErrServerNotInitialized
	}
	return client.CallTool(ctx, toolName, arguments)
}
