package strata

import (
	"path"
	"strings"
	"time"
)

// snapshotTimeFormat is the UTC, second-precision timestamp embedded in
// snapshot keys, e.g. 20260901T120000Z.
const snapshotTimeFormat = "20060102T150405Z"

// SnapshotLayout is the addressing contract all components agree on: every
// snapshot of one logical dataset lives under a single partition prefix and
// is named <entity>_<timestamp><ext>. It is a convention, not a process.
type SnapshotLayout struct {
	prefix string
	entity string
	ext    string
}

// NewSnapshotLayout creates a layout for one partition prefix and entity.
//
// ext is the snapshot extension including the dot (".csv", ".csv.gz",
// ".jsonl", ".parquet"). The prefix gains a trailing slash if missing.
func NewSnapshotLayout(prefix, entity, ext string) SnapshotLayout {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return SnapshotLayout{prefix: prefix, entity: entity, ext: ext}
}

// Prefix returns the partition prefix, trailing slash included.
func (l SnapshotLayout) Prefix() string {
	return l.prefix
}

// Key derives the snapshot key for a run timestamp.
func (l SnapshotLayout) Key(ts time.Time) string {
	return l.prefix + l.entity + "_" + ts.UTC().Format(snapshotTimeFormat) + l.ext
}

// KeyWithSuffix derives a disambiguated key for runs that collide within
// one second. The suffix goes between timestamp and extension.
func (l SnapshotLayout) KeyWithSuffix(ts time.Time, suffix string) string {
	return l.prefix + l.entity + "_" + ts.UTC().Format(snapshotTimeFormat) + "_" + suffix + l.ext
}

// IsSnapshot reports whether key names a snapshot file under this layout's
// prefix. Staging or foreign objects under the prefix are ignored by
// scanners via this predicate.
func (l SnapshotLayout) IsSnapshot(key string) bool {
	if !strings.HasPrefix(key, l.prefix) {
		return false
	}
	base := path.Base(key)
	if !strings.HasPrefix(base, l.entity+"_") {
		return false
	}
	// No sub-prefixes: the snapshot sits directly under the partition prefix.
	if strings.Contains(strings.TrimPrefix(key, l.prefix), "/") {
		return false
	}
	return strings.HasSuffix(base, l.ext)
}

// Timestamp parses the run timestamp out of a snapshot key. Returns the
// zero time when key does not follow the layout.
func (l SnapshotLayout) Timestamp(key string) time.Time {
	if !l.IsSnapshot(key) {
		return time.Time{}
	}
	base := path.Base(key)
	core := strings.TrimSuffix(strings.TrimPrefix(base, l.entity+"_"), l.ext)
	// Strip a collision suffix if present.
	if i := strings.IndexByte(core, '_'); i >= 0 {
		core = core[:i]
	}
	ts, err := time.Parse(snapshotTimeFormat, core)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// GrantPattern is the narrowest resource reference covering the prefix and
// everything under it, used when scoping storage grants.
func (l SnapshotLayout) GrantPattern(bucket string) ResourceRef {
	return ResourceRef("s3://" + bucket + "/" + l.prefix + "*")
}
