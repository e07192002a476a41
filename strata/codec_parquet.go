package strata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"
)

// maxSafeInt64 is the largest integer exactly representable in float64.
// JSON numbers decode as float64, so integer fields arrive through it.
const maxSafeInt64 = 1 << 53

// ParquetField defines one flat scalar field of a parquet snapshot.
type ParquetField struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// parquetCodec implements Codec for Apache Parquet snapshots.
//
// Only the flat scalar shapes this pipeline produces are supported: bigint,
// double, and string columns, optionally nullable. Parquet files carry their
// schema, so scanner inference over them is exact rather than sampled.
type parquetCodec struct {
	fields   []ParquetField
	pqSchema *parquet.Schema
}

// NewParquetCodec creates a parquet codec for the given flat schema.
func NewParquetCodec(fields []ParquetField) (Codec, error) {
	if len(fields) == 0 {
		return nil, errors.New("parquet codec: field list is required")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.New("parquet codec: empty field name")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("parquet codec: duplicate field %q", f.Name)
		}
		if f.Type != TypeBigInt && f.Type != TypeDouble && f.Type != TypeString {
			return nil, fmt.Errorf("parquet codec: field %q: unsupported type %s", f.Name, f.Type)
		}
		seen[f.Name] = true
	}

	c := &parquetCodec{fields: fields}
	c.pqSchema = buildParquetSchema(fields)

	// parquet-go orders leaf columns by schema field order; realign our
	// field list with it so row indexes agree.
	ordered := make([]ParquetField, 0, len(fields))
	for _, node := range c.pqSchema.Fields() {
		for _, f := range fields {
			if f.Name == node.Name() {
				ordered = append(ordered, f)
				break
			}
		}
	}
	c.fields = ordered

	return c, nil
}

func (c *parquetCodec) Name() string { return "parquet" }

func (c *parquetCodec) Extension() string { return ".parquet" }

func (c *parquetCodec) Encode(w io.Writer, records []Record) error {
	var buf bytes.Buffer
	rowBuf := parquet.NewBuffer(c.pqSchema)

	for i, rec := range records {
		row, err := c.recordToRow(rec, i)
		if err != nil {
			return err
		}
		if _, err := rowBuf.WriteRows([]parquet.Row{row}); err != nil {
			return fmt.Errorf("parquet: write row %d: %w", i, err)
		}
	}

	pqWriter := parquet.NewWriter(&buf, c.pqSchema, parquet.Compression(&parquet.Snappy))
	if _, err := pqWriter.WriteRowGroup(rowBuf); err != nil {
		_ = pqWriter.Close()
		return fmt.Errorf("parquet: write row group: %w", err)
	}
	if err := pqWriter.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}

	_, err := io.Copy(w, &buf)
	return err
}

func (c *parquetCodec) Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parquet: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("parquet: empty file")
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet: open file: %w", err)
	}
	if file.NumRows() == 0 {
		return []Record{}, nil
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	records := make([]Record, 0, file.NumRows())
	rows := make([]parquet.Row, 64)
	for {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n; i++ {
			records = append(records, c.rowToRecord(rows[i]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parquet: read rows: %w", err)
		}
	}
	return records, nil
}

func (c *parquetCodec) recordToRow(rec Record, index int) (parquet.Row, error) {
	row := make(parquet.Row, len(c.fields))
	for i, field := range c.fields {
		val, exists := rec[field.Name]
		if !exists || val == nil {
			if !field.Nullable {
				return nil, fmt.Errorf("parquet: record %d missing required field %q", index, field.Name)
			}
			row[i] = parquet.NullValue().Level(0, 0, i)
			continue
		}

		pqVal, err := convertToParquetValue(val, field, index)
		if err != nil {
			return nil, err
		}
		defLevel := 0
		if field.Nullable {
			defLevel = 1
		}
		row[i] = pqVal.Level(0, defLevel, i)
	}
	return row, nil
}

func (c *parquetCodec) rowToRecord(row parquet.Row) Record {
	rec := make(Record, len(c.fields))
	for i, field := range c.fields {
		if i >= len(row) {
			continue
		}
		val := row[i]
		if val.IsNull() {
			rec[field.Name] = nil
			continue
		}
		switch field.Type {
		case TypeBigInt:
			rec[field.Name] = val.Int64()
		case TypeDouble:
			rec[field.Name] = val.Double()
		default:
			rec[field.Name] = string(val.ByteArray())
		}
	}
	return rec
}

func convertToParquetValue(val any, field ParquetField, index int) (parquet.Value, error) {
	switch field.Type {
	case TypeBigInt:
		switch v := val.(type) {
		case int:
			return parquet.Int64Value(int64(v)), nil
		case int64:
			return parquet.Int64Value(v), nil
		case float64: // JSON numbers
			if math.Trunc(v) != v {
				return parquet.Value{}, fmt.Errorf("parquet: record %d field %q: %v is not an integer", index, field.Name, v)
			}
			if v < -maxSafeInt64 || v > maxSafeInt64 {
				return parquet.Value{}, fmt.Errorf("parquet: record %d field %q: %v exceeds safe integer range", index, field.Name, v)
			}
			return parquet.Int64Value(int64(v)), nil
		default:
			return parquet.Value{}, fmt.Errorf("parquet: record %d field %q: expected integer, got %T", index, field.Name, val)
		}

	case TypeDouble:
		switch v := val.(type) {
		case float64:
			return parquet.DoubleValue(v), nil
		case int:
			return parquet.DoubleValue(float64(v)), nil
		case int64:
			return parquet.DoubleValue(float64(v)), nil
		default:
			return parquet.Value{}, fmt.Errorf("parquet: record %d field %q: expected double, got %T", index, field.Name, val)
		}

	case TypeString:
		if v, ok := val.(string); ok {
			return parquet.ByteArrayValue([]byte(v)), nil
		}
		return parquet.ByteArrayValue([]byte(formatScalar(val))), nil

	default:
		return parquet.Value{}, fmt.Errorf("parquet: record %d field %q: unsupported type %s", index, field.Name, field.Type)
	}
}

func buildParquetSchema(fields []ParquetField) *parquet.Schema {
	group := make(parquet.Group, len(fields))
	for _, field := range fields {
		var node parquet.Node
		switch field.Type {
		case TypeBigInt:
			node = parquet.Int(64)
		case TypeDouble:
			node = parquet.Leaf(parquet.DoubleType)
		default:
			node = parquet.String()
		}
		if field.Nullable {
			node = parquet.Optional(node)
		}
		group[field.Name] = node
	}
	return parquet.NewSchema("record", group)
}
