// Package main provides the CLI entry point for Forge, an interactive AI
// coding assistant agent runtime.
//
// # Basic Usage
//
// Run a single turn against the default agent:
//
//	forge run --message "list the files in this repo"
//
// Resume a prior session:
//
//	forge run --resume SESSION_ID --message "now fix the failing test"
//
// # Environment Variables
//
//   - FORGE_CONFIG: path to the configuration file (default: forge.yaml)
//   - FORGE_LOG_LEVEL: overrides logging.level
//   - FORGE_<PROVIDER>_API_KEY: overrides llm.providers.<provider>.api_key
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached. This
// is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "forge",
		Short: "Forge - an interactive AI coding assistant agent runtime",
		Long: `Forge drives the core agent loop of an interactive AI coding assistant:
it formats requests, streams model completions, executes tools, and runs
hooks at each of the four lifecycle trigger points.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "forge.yaml", "path to the configuration file (or set FORGE_CONFIG)")

	rootCmd.AddCommand(buildRunCmd())
	return rootCmd
}

func resolveConfigPath() string {
	if configPath != "" && configPath != "forge.yaml" {
		return configPath
	}
	if env := os.Getenv("FORGE_CONFIG"); env != "" {
		return env
	}
	return configPath
}
