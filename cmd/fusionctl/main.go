// Command fusionctl runs fusion, reports and weight optimisation against
// local input files, and manages the database schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fusionctl",
		Short: "Offline tooling for the NeuroFusion screening service",
		Long: `fusionctl fuses modality results from YAML or JSON files, renders
screening reports, tunes base weights against labeled cases, and runs the
database migrations of the screening server.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		Version:      version,
	}

	root.PersistentFlags().StringP("output", "o", "json", "output format: json or yaml")

	root.AddCommand(newFuseCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newOptimizeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
