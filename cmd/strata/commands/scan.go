package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/internal/config"
	"github.com/strata-lake/strata/strata"
)

// NewScanCommand runs one catalog scan over the partition prefix.
func NewScanCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Infer the snapshot schema and publish the table definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := BuildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			def, err := app.Scanner.Scan(cmd.Context(), cfg.Storage.Prefix)
			if errors.Is(err, strata.ErrNoSnapshots) {
				fmt.Printf("no snapshots under %s yet\n", cfg.Storage.Prefix)
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(def)
		},
	}
}
