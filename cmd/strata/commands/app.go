// Package commands implements the strata CLI commands.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/internal/access"
	"github.com/strata-lake/strata/internal/catalog"
	"github.com/strata-lake/strata/internal/config"
	"github.com/strata-lake/strata/internal/extract"
	"github.com/strata-lake/strata/internal/logging"
	"github.com/strata-lake/strata/internal/metrics"
	"github.com/strata-lake/strata/internal/query"
	"github.com/strata-lake/strata/internal/scanner"
	"github.com/strata-lake/strata/internal/setup"
	"github.com/strata-lake/strata/internal/source"
	"github.com/strata-lake/strata/strata"
	s3store "github.com/strata-lake/strata/strata/s3"
)

// App bundles the wired pipeline components for one process.
type App struct {
	Config    config.Config
	Log       zerolog.Logger
	Store     strata.Store
	Layout    strata.SnapshotLayout
	Catalog   *catalog.DuckDB
	Extractor *extract.Extractor
	Scanner   *scanner.Scanner
	Access    *access.Controller
	Engine    *query.Engine
	Setup     *setup.Setup
	Metrics   *metrics.Collector
}

// BuildApp constructs every component from cfg. Callers must Close.
func BuildApp(ctx context.Context, cfg config.Config) (*App, error) {
	log := logging.New("strata", cfg.LogLevel)

	store, dataRoot, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	layout := strata.NewSnapshotLayout(cfg.Storage.Prefix, "users", ".csv")

	codec, err := strata.NewCSVCodec(source.Fields)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.NewDuckDB(cfg.Catalog.Path, dataRoot)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Backend == "s3" {
		if err := enableHTTPFS(ctx, cat); err != nil {
			_ = cat.Close()
			return nil, err
		}
	}

	src := source.New(cfg.Source.Endpoint, cfg.Source.Timeout)
	ac := access.New(log, setup.PrincipalAdmin)

	app := &App{
		Config:    cfg,
		Log:       log,
		Store:     store,
		Layout:    layout,
		Catalog:   cat,
		Extractor: extract.New(src, store, layout, codec, cfg.Storage.Bucket, log),
		Scanner:   scanner.New(store, cat, cfg.Catalog.Namespace, cfg.Catalog.Table, log),
		Access:    ac,
		Engine:    query.New(cat.DB(), cfg.Query.ResultRoot, log),
		Setup: setup.New(ac, layout.GrantPattern(cfg.Storage.Bucket),
			cfg.Catalog.Namespace, cfg.Query.ResultRoot, log),
		Metrics: metrics.New(),
	}
	return app, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.Catalog.Close()
}

func buildStore(ctx context.Context, cfg config.Config) (strata.Store, string, error) {
	switch cfg.Storage.Backend {
	case "fs":
		st, err := strata.NewFS(cfg.Storage.Root)
		if err != nil {
			return nil, "", err
		}
		return st, cfg.Storage.Root, nil
	case "memory":
		return strata.NewMemory(), cfg.Storage.Root, nil
	case "s3":
		client, err := s3store.NewClient(ctx, s3store.ClientConfig{
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.PathStyle,
		})
		if err != nil {
			return nil, "", err
		}
		st, err := s3store.New(client, s3store.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			return nil, "", err
		}
		return st, "s3://" + cfg.Storage.Bucket, nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// enableHTTPFS loads the DuckDB extension that lets views read s3:// paths.
func enableHTTPFS(ctx context.Context, cat *catalog.DuckDB) error {
	for _, stmt := range []string{"INSTALL httpfs", "LOAD httpfs"} {
		if _, err := cat.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("enabling httpfs: %w", err)
		}
	}
	return nil
}
