// Package schedule runs the extraction and scan jobs on independent cron
// schedules. The two jobs stay decoupled: a scan failure never blocks the
// next extraction and vice versa.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/internal/extract"
	"github.com/strata-lake/strata/internal/metrics"
	"github.com/strata-lake/strata/strata"
)

// ScanRunner is the catalog scan entry point.
type ScanRunner interface {
	Scan(ctx context.Context, prefix string) (*strata.TableDefinition, error)
}

// Scheduler drives periodic extraction and scanning.
type Scheduler struct {
	cron      *cron.Cron
	extractor *extract.Extractor
	scanner   ScanRunner
	prefix    string
	collector *metrics.Collector
	log       zerolog.Logger
}

// New creates a Scheduler over the given jobs. prefix is the partition
// prefix the scan job covers.
func New(extractor *extract.Extractor, scanner ScanRunner, prefix string, collector *metrics.Collector, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		extractor: extractor,
		scanner:   scanner,
		prefix:    prefix,
		collector: collector,
		log:       log,
	}
}

// Start registers both jobs and starts the cron loop. Either schedule may
// be empty to disable that job.
func (s *Scheduler) Start(ctx context.Context, extractSpec, scanSpec string) error {
	if extractSpec != "" {
		if _, err := s.cron.AddFunc(extractSpec, func() { s.runExtract(ctx) }); err != nil {
			return err
		}
	}
	if scanSpec != "" {
		if _, err := s.cron.AddFunc(scanSpec, func() { s.runScan(ctx) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info().
		Str("extract", extractSpec).
		Str("scan", scanSpec).
		Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runExtract(ctx context.Context) {
	start := time.Now()
	result, err := s.extractor.Run(ctx)
	metrics.Observe(s.collector.ExtractRuns, s.collector.ExtractDuration, start, err)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled extraction failed")
		return
	}
	s.collector.ExtractRows.Add(float64(result.Rows))
}

func (s *Scheduler) runScan(ctx context.Context) {
	start := time.Now()
	_, err := s.scanner.Scan(ctx, s.prefix)
	if errors.Is(err, strata.ErrNoSnapshots) {
		s.log.Info().Msg("no snapshots yet, scan skipped")
		return
	}
	metrics.Observe(s.collector.ScanRuns, s.collector.ScanDuration, start, err)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled scan failed")
	}
}
