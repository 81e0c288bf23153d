// Dealer Desk Core - card-room POS relay
//
// This is the main entry point for the Dealer Desk Core application. It
// runs the local REST surface used by the desk's front ends and keeps a
// pusher-protocol connection to the multi-tenant hub for the selected store,
// queueing outbound events while the hub is unreachable.
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
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each call returns fresh commands so
// tests can execute them in isolation.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dealerdesk",
		Short:         "Card-room POS relay between the desk and the hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config.yaml (default $DEALERDESK_CONFIG or "+defaultConfigPath+")")

	resolve := func() string {
		if configPath != "" {
			return configPath
		}
		return getConfigPath()
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST surface and the hub relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolve())
		},
	}

	credentials := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the offline credential cache",
	}
	credentials.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete cached credentials and the stored hub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return resetCredentials(cmd.OutOrStdout(), resolve())
		},
	})

	queue := &cobra.Command{
		Use:   "queue",
		Short: "Inspect undelivered outbound events",
	}
	queue.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the backlog size for every tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listQueues(cmd.OutOrStdout(), resolve())
		},
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dealerdesk %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	root.AddCommand(serve, credentials, queue, versionCmd)
	return root
}

// getConfigPath returns the configuration file path.
// Checks DEALERDESK_CONFIG environment variable first, then falls back to default.
func getConfigPath() string {
	if path := os.Getenv("DEALERDESK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
