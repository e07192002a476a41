package scanner

import (
	"sort"
	"strconv"

	"github.com/strata-lake/strata/strata"
)

// inferSchema infers one column per field across a batch of records,
// widening on the type lattice for within-file inconsistencies. Column
// order is the first-seen order of fields, which for CSV snapshots is the
// header order.
func inferSchema(records []strata.Record, order []string) []strata.Column {
	types := make(map[string]strata.FieldType)
	seen := make([]string, 0, len(order))
	seenSet := make(map[string]bool)

	note := func(name string) {
		if !seenSet[name] {
			seenSet[name] = true
			seen = append(seen, name)
		}
	}
	for _, name := range order {
		note(name)
	}

	for _, rec := range records {
		// Deterministic iteration keeps first-seen order stable for
		// records with no declared order (JSONL, parquet).
		names := make([]string, 0, len(rec))
		for name := range rec {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			note(name)
			t := inferValue(rec[name])
			if t == strata.TypeUnknown {
				continue
			}
			types[name] = strata.Widen(types[name], t)
		}
	}

	columns := make([]strata.Column, 0, len(seen))
	for _, name := range seen {
		t := types[name]
		if t == strata.TypeUnknown {
			// A column of only nulls/empties: the conservative choice.
			t = strata.TypeString
		}
		columns = append(columns, strata.Column{Name: name, Type: t})
	}
	return columns
}

// inferValue types one scalar. CSV cells arrive as strings and are probed
// numerically; typed values (JSONL, parquet) map directly.
func inferValue(v any) strata.FieldType {
	switch val := v.(type) {
	case nil:
		return strata.TypeUnknown
	case int, int32, int64:
		return strata.TypeBigInt
	case float32:
		return strata.TypeDouble
	case float64:
		if val == float64(int64(val)) {
			return strata.TypeBigInt
		}
		return strata.TypeDouble
	case string:
		if val == "" {
			return strata.TypeUnknown
		}
		if _, err := strconv.ParseInt(val, 10, 64); err == nil {
			return strata.TypeBigInt
		}
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			return strata.TypeDouble
		}
		return strata.TypeString
	default:
		// Bools and anything exotic widen to string.
		return strata.TypeString
	}
}

// mergeColumns unions existing and fresh columns, widening types where both
// carry the same name. Columns present only in existing are retained and
// reported as removed; callers log them rather than dropping history.
func mergeColumns(existing, fresh []strata.Column) (merged []strata.Column, removed []string) {
	freshIdx := make(map[string]strata.FieldType, len(fresh))
	for _, c := range fresh {
		freshIdx[c.Name] = c.Type
	}

	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.Name] = true
		if t, ok := freshIdx[c.Name]; ok {
			merged = append(merged, strata.Column{Name: c.Name, Type: strata.Widen(c.Type, t)})
		} else {
			merged = append(merged, c)
			removed = append(removed, c.Name)
		}
	}
	for _, c := range fresh {
		if !seen[c.Name] {
			merged = append(merged, c)
		}
	}
	return merged, removed
}
