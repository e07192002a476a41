package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strata-lake/strata/internal/config"
	"github.com/strata-lake/strata/internal/schedule"
	"github.com/strata-lake/strata/internal/server"
)

// NewServeCommand runs the pipeline as a long-lived service: provisioning,
// scheduled jobs, and the HTTP surface.
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline service with scheduled jobs and the HTTP API",
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

			sched := schedule.New(app.Extractor, app.Scanner, cfg.Storage.Prefix, app.Metrics, app.Log)
			if err := sched.Start(cmd.Context(), cfg.Jobs.ExtractSchedule, cfg.Jobs.ScanSchedule); err != nil {
				return err
			}
			defer sched.Stop()

			srv := server.New(cfg.Server.Addr, app.Extractor, app.Scanner, cfg.Storage.Prefix,
				app.Catalog, app.Access, app.Engine, app.Metrics, app.Log)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				app.Log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}
