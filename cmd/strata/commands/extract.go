package commands

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewExtractCommand runs one extraction and prints the run result.
func NewExtractCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Fetch the upstream dataset and land one snapshot file",
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

			result, err := app.Extractor.Run(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
