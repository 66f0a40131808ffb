package main

import (
	"os"

	"github.com/spf13/cobra"
)

var supervised bool

var rootCmd = &cobra.Command{
	Use:   "clerk",
	Short: "Agentic office automation task engine",
	Long: `Clerk turns a natural-language request into a plan of TODO items,
resolves their dependencies, and executes each one through a tool-calling
agent that drives Word and Excel via a local office server.

Core capabilities:
- Decomposes requests into a dependency-ordered plan
- Executes each TODO with gather, act, verify and bounded retries
- Isolates failures: dependents are skipped, the rest continues
- Verifies outcomes with an independent review pass
- Records every run in a local SQLite history`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&supervised, "supervised", false, "Ask before every state-changing tool call")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(versionCmd)
}
