// fogcore is the device identity and access-control core of a SweetManager
// fog node.
//
// It registers room devices, authenticates them by API key, answers RFID
// door checks against locally cached grants and keeps that cache in step
// with the hotel backend. Everything a door needs to decide works without
// the backend or the broker being reachable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor FOGCORE_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the environment variable holding the config path.
	configEnv = "FOGCORE_CONFIG"
)

func main() {
	// Cancelled on Ctrl+C or SIGTERM; every long-running command watches it.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the fogcore command tree. Running the bare command
// is the same as "fogcore serve".
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fogcore",
		Short:         "SweetManager fog node identity and access-control core",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config file (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newVersionCommand(),
	)
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event fan-out and backend sync until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(*configPath))
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fogcore %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// getConfigPath returns the configuration file path.
// An explicit flag wins, then FOGCORE_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
