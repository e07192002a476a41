package commands

import (
	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/internal/config"
	"github.com/strata-lake/strata/internal/setup"
)

// NewSetupCommand provisions grants, the data location, and the result
// root, then prints the scanner's effective grants.
func NewSetupCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision grants and governed locations",
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

			if err := app.Setup.Run(cmd.Context()); err != nil {
				return err
			}
			grants, err := app.Access.Enumerate(cmd.Context(), setup.PrincipalScanner)
			if err != nil {
				return err
			}
			return printJSON(grants)
		},
	}
}
