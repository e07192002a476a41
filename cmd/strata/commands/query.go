package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/internal/config"
)

// NewQueryCommand executes one SQL statement against the cataloged
// namespace and prints the result handle.
func NewQueryCommand(configPath *string) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run ad-hoc SQL and persist the result set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("sql statement is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			app, err := BuildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			ns := namespace
			if ns == "" {
				ns = cfg.Catalog.Namespace
			}
			handle, err := app.Engine.Execute(cmd.Context(), args[0], ns)
			if err != nil {
				return err
			}
			return printJSON(handle)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "catalog namespace (default: configured namespace)")
	return cmd
}
