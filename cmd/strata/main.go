// Command strata runs the snapshot ingestion pipeline: extraction, catalog
// scanning, access provisioning, and the query surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/cmd/strata/commands"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "Strata snapshot ingestion pipeline",
		Long: `Strata lands immutable full-dataset snapshots in object storage,
derives a queryable schema catalog from them, provisions scoped access
grants, and serves ad-hoc SQL over the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(commands.NewExtractCommand(&configPath))
	rootCmd.AddCommand(commands.NewScanCommand(&configPath))
	rootCmd.AddCommand(commands.NewQueryCommand(&configPath))
	rootCmd.AddCommand(commands.NewSetupCommand(&configPath))
	rootCmd.AddCommand(commands.NewServeCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
