// Package extract implements the snapshot extraction run: fetch the full
// upstream dataset, serialize it, and publish exactly one immutable
// snapshot file per successful run.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

// Fetcher is the upstream source of a full snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]strata.Record, error)
}

// RunResult reports a successful extraction.
type RunResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Rows   int    `json:"rows"`
}

// Extractor lands full-snapshot files under one partition prefix.
//
// Re-running produces a new distinctly named file, never an upsert: the
// partition prefix is a growing log of snapshots.
type Extractor struct {
	source     Fetcher
	store      strata.Store
	layout     strata.SnapshotLayout
	codec      strata.Codec
	compressor strata.Compressor
	bucket     string
	clock      func() time.Time
	log        zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCompressor compresses snapshot files. Default: none (plain CSV is
// the contract format).
func WithCompressor(c strata.Compressor) Option {
	return func(e *Extractor) { e.compressor = c }
}

// WithClock overrides the run timestamp source. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Extractor) { e.clock = clock }
}

// New creates an Extractor writing through codec to store under layout.
// bucket only labels results; addressing goes through the store.
func New(src Fetcher, store strata.Store, layout strata.SnapshotLayout, codec strata.Codec, bucket string, log zerolog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		source:     src,
		store:      store,
		layout:     layout,
		codec:      codec,
		compressor: strata.NewNoOpCompressor(),
		bucket:     bucket,
		clock:      time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one full-snapshot extraction.
//
// Failure modes: strata.ErrSourceUnavailable when the upstream fetch fails
// (zero storage writes happen in that case), strata.ErrWriteFailure when
// the destination rejects the write. Both are fatal to the run and safe to
// retry on the next trigger.
func (e *Extractor) Run(ctx context.Context) (*RunResult, error) {
	started := e.clock()

	records, err := e.source.Fetch(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("upstream fetch failed, no snapshot written")
		if errors.Is(err, strata.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", strata.ErrSourceUnavailable, err)
	}

	// Serialize fully in memory before touching storage so a codec error
	// can never leave a partial object behind.
	var buf bytes.Buffer
	cw, err := e.compressor.Compress(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", strata.ErrWriteFailure, err)
	}
	if err := e.codec.Encode(cw, records); err != nil {
		_ = cw.Close()
		return nil, fmt.Errorf("%w: encoding snapshot: %v", strata.ErrWriteFailure, err)
	}
	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", strata.ErrWriteFailure, err)
	}

	key, err := e.publish(ctx, started, buf.Bytes())
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("key", key).
		Int("rows", len(records)).
		Dur("elapsed", e.clock().Sub(started)).
		Msg("snapshot published")

	return &RunResult{Bucket: e.bucket, Key: key, Rows: len(records)}, nil
}

// publish writes the snapshot under its timestamped key. A same-second
// concurrent run trips the store's create-only Put; one retry with a short
// suffix keeps both runs collision-free.
func (e *Extractor) publish(ctx context.Context, ts time.Time, data []byte) (string, error) {
	key := e.layout.Key(ts) + e.compressor.Extension()
	err := e.store.Put(ctx, key, bytes.NewReader(data))
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, strata.ErrPathExists) {
		return "", fmt.Errorf("%w: %v", strata.ErrWriteFailure, err)
	}

	key = e.layout.KeyWithSuffix(ts, uuid.NewString()[:8]) + e.compressor.Extension()
	if err := e.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %v", strata.ErrWriteFailure, err)
	}
	return key, nil
}
