package scanner

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/strata-lake/strata/strata"
)

// decodeCSV reads a CSV snapshot, keeping the header order so inferred
// columns come out in declaration order.
func decodeCSV(r io.Reader) ([]strata.Record, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("missing header row")
		}
		return nil, nil, err
	}

	var records []strata.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rec := make(strata.Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, header, nil
}

// decodeParquet reads a parquet snapshot without a declared schema: the
// file carries its own, so inference over it is exact. Only the flat
// scalar shapes the pipeline writes are handled.
func decodeParquet(r io.Reader) ([]strata.Record, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}

	fields := file.Schema().Fields()
	order := make([]string, len(fields))
	for i, f := range fields {
		order[i] = f.Name()
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	var records []strata.Record
	rows := make([]parquet.Row, 64)
	for {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n; i++ {
			rec := make(strata.Record, len(order))
			for j, name := range order {
				if j >= len(rows[i]) {
					continue
				}
				rec[name] = parquetScalar(rows[i][j])
			}
			records = append(records, rec)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("read rows: %w", err)
		}
	}
	return records, order, nil
}

func parquetScalar(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.Boolean:
		return v.Boolean()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
