package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leadctl",
		Short: "LeadPilot admin CLI",
		Long: `leadctl manages LeadPilot tenants and lets you try the lead scoring rules offline.

Examples:
  # Create or update tenants and their dashboard users
  leadctl seed --file tenants.yaml

  # Score a lead without a running server
  leadctl score --name Ana --email ana@example.com --budget premium --timeline asap`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newScoreCmd())
	return rootCmd
}
