package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/forgecode/forge/internal/agent"
	"github.com/forgecode/forge/internal/config"
	"github.com/forgecode/forge/pkg/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runFlags struct {
	agentPath     string
	message       string
	resume        string
	output        string
	trustAllTools bool
}

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one turn of the agent against a message",
		Long: `run sends a message through the agent loop: it formats the request,
streams the model completion, executes any requested tools, and runs the
configured hooks at each of the four lifecycle trigger points.`,
		RunE: runRunCmd,
	}
	cmd.Flags().StringVar(&runFlags.agentPath, "agent", "", "path to the agent config YAML (spec §3 AgentConfig)")
	cmd.Flags().StringVar(&runFlags.message, "message", "", "the user message to send (required)")
	cmd.Flags().StringVar(&runFlags.resume, "resume", "", "resume an existing session by ID instead of starting a new one")
	cmd.Flags().StringVar(&runFlags.output, "output", "text", "output format: text | json | json-streaming")
	cmd.Flags().BoolVar(&runFlags.trustAllTools, "trust-all-tools", false, "bypass tool approval (hooks still run and are logged)")
	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(runFlags.message) == "" {
		return fmt.Errorf("--message is required")
	}
	switch runFlags.output {
	case "text", "json", "json-streaming":
	default:
		return fmt.Errorf("--output must be text, json, or json-streaming")
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var agentCfg *models.AgentConfig
	if runFlags.agentPath != "" {
		agentCfg, err = config.LoadAgentConfig(runFlags.agentPath)
		if err != nil {
			return fmt.Errorf("load agent config: %w", err)
		}
	}

	provider, err := selectProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("select llm provider: %w", err)
	}

	store, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}

	rt := agent.NewRuntimeWithOptions(provider, store, buildRuntimeOptions(cfg, agentCfg, runFlags.trustAllTools))
	registerBuiltinTools(rt, cfg)
	rt.SetOptions(agent.RuntimeOptions{HookToolInvoker: toolInvoker(rt)})

	agentID := cfg.Session.DefaultAgentID
	systemPrompt := ""
	if agentCfg != nil {
		if agentCfg.Name != "" {
			agentID = agentCfg.Name
		}
		systemPrompt = agentCfg.SystemPrompt
	}
	if systemPrompt != "" {
		rt.SetSystemPrompt(systemPrompt)
	}

	ctx, cancel := signalContext()
	defer cancel()

	session, err := resolveSession(ctx, store, agentID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.RoleUser,
		Direction: models.DirectionInbound,
		Content:   runFlags.message,
		CreatedAt: time.Now(),
	}

	events, err := rt.ProcessStream(ctx, session, msg)
	if err != nil {
		return fmt.Errorf("start agent run: %w", err)
	}

	printer := newEventPrinter(runFlags.output, cmd.OutOrStdout())
	fatal := false
	for ev := range events {
		printer.handle(ev)
		if ev.Type == models.AgentEventRunError {
			fatal = true
		}
	}
	printer.flush()

	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", session.ID)
	if fatal {
		return fmt.Errorf("agent run ended with an error")
	}
	return nil
}

func resolveSession(ctx context.Context, store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error
}, agentID string) (*models.Session, error) {
	if runFlags.resume != "" {
		session, err := store.Get(ctx, runFlags.resume)
		if err != nil {
			return nil, fmt.Errorf("resume session %q: %w", runFlags.resume, err)
		}
		return session, nil
	}
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Channel:   models.ChannelType("cli"),
		ChannelID: "local",
		Key:       agentID + ":cli:" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, mirroring the
// teacher's server shutdown handling but scoped to a single CLI turn.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
