// Package main provides the lightweight MCP server. It needs no external
// services: assessments stay in memory and feedback goes to SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mcp-server-lite",
	Short: "NeuroFusion screening MCP server (no external services)",
	Long: `Serves the fusion, assessment, report and feedback tools over MCP.

Configuration comes from NEUROFUSION_* environment variables, for example
NEUROFUSION_DATA_DIR, NEUROFUSION_TRANSPORT=http or NEUROFUSION_STRATEGY.`,
	RunE: runServe,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(unregisterCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
