// Package scanner discovers the schema of landed snapshot files and
// publishes table definitions into the catalog.
//
// The scanner runs on its own trigger, decoupled from the extractor:
// at-least-once landing, eventually-cataloged. It never regresses a
// published definition on a failed or empty scan.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

// DefaultSampleLimit caps how many snapshot files one scan decodes. The
// merge is order-insensitive, so sampling newest-first loses nothing but
// latency.
const DefaultSampleLimit = 16

// Scanner infers and publishes one table definition per partition prefix.
type Scanner struct {
	store       strata.Store
	catalog     strata.Catalog
	namespace   string
	table       string
	policy      strata.UpdatePolicy
	sampleLimit int
	log         zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPolicy overrides the schema-change policy. Default: merge updates,
// log deletes.
func WithPolicy(p strata.UpdatePolicy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithSampleLimit caps the files decoded per scan.
func WithSampleLimit(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.sampleLimit = n
		}
	}
}

// New creates a Scanner publishing <namespace>.<table> definitions.
func New(store strata.Store, catalog strata.Catalog, namespace, table string, log zerolog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		store:       store,
		catalog:     catalog,
		namespace:   namespace,
		table:       table,
		policy:      strata.UpdatePolicy{Update: strata.UpdateBehaviorMerge, Delete: strata.DeleteBehaviorLog},
		sampleLimit: DefaultSampleLimit,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists the partition prefix, samples snapshot files, infers the
// column set, and publishes the table definition.
//
// Zero snapshot files yield strata.ErrNoSnapshots: nothing is published
// and nothing regresses, indistinguishable from "not yet run". Storage or
// parse errors wrap strata.ErrScanFailure and leave the previously
// published definition untouched.
func (s *Scanner) Scan(ctx context.Context, prefix string) (*strata.TableDefinition, error) {
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", strata.ErrScanFailure, prefix, err)
	}

	snapshots := filterSnapshots(keys, prefix)
	if len(snapshots) == 0 {
		return nil, strata.ErrNoSnapshots
	}

	// Newest first; keys embed second-precision timestamps, so
	// lexicographic order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))
	if len(snapshots) > s.sampleLimit {
		snapshots = snapshots[:s.sampleLimit]
	}

	var columns []strata.Column
	for _, key := range snapshots {
		fileCols, err := s.inferFile(ctx, key)
		if err != nil {
			return nil, err
		}
		if columns == nil {
			columns = fileCols
			continue
		}
		// Cross-file drift merges the same way cross-scan drift does:
		// union the columns, widen the types.
		columns, _ = mergeColumns(columns, fileCols)
	}

	fresh := strata.TableDefinition{
		Namespace: s.namespace,
		Name:      s.table,
		Location:  strata.ResourceRef(prefix),
		Columns:   columns,
	}

	def, err := s.publish(ctx, fresh)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("table", s.namespace+"."+s.table).
		Int("files_sampled", len(snapshots)).
		Int("columns", len(def.Columns)).
		Msg("table definition published")
	return def, nil
}

// publish applies the update policy against the existing definition, if
// any, and writes the result through the catalog.
func (s *Scanner) publish(ctx context.Context, fresh strata.TableDefinition) (*strata.TableDefinition, error) {
	existing, err := s.catalog.DescribeTable(ctx, s.namespace, s.table)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("%w: describing %s.%s: %v", strata.ErrScanFailure, s.namespace, s.table, err)
	}

	def := fresh
	if existing != nil && s.policy.Update == strata.UpdateBehaviorMerge {
		merged, removed := mergeColumns(existing.Columns, fresh.Columns)
		def.Columns = merged
		if len(removed) > 0 && s.policy.Delete == strata.DeleteBehaviorLog {
			s.log.Warn().
				Strs("columns", removed).
				Msg("columns absent from latest snapshots retained in definition")
		}
	}

	if err := s.catalog.CreateOrUpdateTable(ctx, def, s.policy); err != nil {
		return nil, fmt.Errorf("%w: publishing %s.%s: %v", strata.ErrScanFailure, s.namespace, s.table, err)
	}
	return &def, nil
}

// inferFile decodes one snapshot and infers its column set.
func (s *Scanner) inferFile(ctx context.Context, key string) ([]strata.Column, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", strata.ErrScanFailure, key, err)
	}
	defer func() { _ = rc.Close() }()

	dec, err := strata.DecompressorForKey(key).Decompress(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing %s: %v", strata.ErrScanFailure, key, err)
	}
	defer func() { _ = dec.Close() }()

	records, order, err := decodeSnapshot(key, dec)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", strata.ErrScanFailure, key, err)
	}
	return inferSchema(records, order), nil
}

// decodeSnapshot picks the codec from the key's extension and returns the
// records plus any declared column order (the CSV header).
func decodeSnapshot(key string, r io.Reader) ([]strata.Record, []string, error) {
	switch snapshotFormat(key) {
	case "csv":
		return decodeCSV(r)
	case "jsonl":
		codec := strata.NewJSONLCodec()
		records, err := codec.Decode(r)
		return records, nil, err
	case "parquet":
		return decodeParquet(r)
	default:
		return nil, nil, fmt.Errorf("unrecognized snapshot format")
	}
}

// filterSnapshots keeps keys that look like snapshot files directly under
// the prefix, in any format the scanner can type-infer.
func filterSnapshots(keys []string, prefix string) []string {
	var out []string
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if rel == key && prefix != "" {
			continue
		}
		if strings.Contains(rel, "/") || strings.HasPrefix(path.Base(key), ".") {
			continue
		}
		if snapshotFormat(key) == "" {
			continue
		}
		out = append(out, key)
	}
	return out
}

// snapshotFormat maps a key to its decode format, seeing through
// compression extensions. Empty means "not a snapshot".
func snapshotFormat(key string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(key, ".gz"), ".zst")
	switch {
	case strings.HasSuffix(base, ".csv"):
		return "csv"
	case strings.HasSuffix(base, ".jsonl"):
		return "jsonl"
	case strings.HasSuffix(base, ".parquet"):
		return "parquet"
	default:
		return ""
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, strata.ErrTableNotFound) || errors.Is(err, strata.ErrNotFound)
}
