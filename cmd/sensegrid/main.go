// SenseGrid Core - IoT telemetry backend.
//
// This is the main entry point for the SenseGrid Core application. It
// serves the REST API that field devices push readings to and that users
// query, and manages the database schema.
//
//	sensegrid                    # same as "sensegrid serve"
//	sensegrid serve --config configs/config.yaml
//	sensegrid migrate up|down|status
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/tronix365/sensegrid/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path, used only when it exists.
const defaultConfigPath = "configs/config.yaml"

// configEnvVar names the config file when --config is not given.
const configEnvVar = "SENSEGRID_CONFIG"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}

// newRootCmd builds the command tree. Running the root command serves.
func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), resolveConfigPath(configPath))
	}

	root := &cobra.Command{
		Use:           "sensegrid",
		Short:         "SenseGrid Core IoT telemetry backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and background listeners",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		newMigrateCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "sensegrid %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

// resolveConfigPath picks the flag, then the environment, then the default
// file if present. An empty result means defaults plus environment only.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
