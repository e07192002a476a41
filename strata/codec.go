package strata

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

const maxScanTokenSize = 10 * 1024 * 1024 // 10MB

// -----------------------------------------------------------------------------
// CSV Codec
// -----------------------------------------------------------------------------

// csvCodec implements Codec for the pipeline's contract format: one header
// row with a fixed field list, one row per record, UTF-8, no trailing
// metadata.
type csvCodec struct {
	fields []string
}

// NewCSVCodec creates a CSV codec with a fixed, ordered field list.
//
// Every encoded row has exactly these columns. Record fields outside the
// list are ignored; absent fields encode as the empty string, never a
// dropped column.
func NewCSVCodec(fields []string) (Codec, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("csv codec: field list is required")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("csv codec: empty field name")
		}
		if seen[f] {
			return nil, fmt.Errorf("csv codec: duplicate field %q", f)
		}
		seen[f] = true
	}
	return &csvCodec{fields: fields}, nil
}

func (c *csvCodec) Name() string { return "csv" }

func (c *csvCodec) Extension() string { return ".csv" }

func (c *csvCodec) Encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(c.fields); err != nil {
		return err
	}
	row := make([]string, len(c.fields))
	for _, rec := range records {
		for i, f := range c.fields {
			row[i] = formatScalar(rec[f])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (c *csvCodec) Decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("csv codec: missing header row")
		}
		return nil, err
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Fields returns the codec's header in order.
func (c *csvCodec) Fields() []string {
	out := make([]string, len(c.fields))
	copy(out, c.fields)
	return out
}

// formatScalar renders a record value as a CSV cell. JSON numbers arrive as
// float64; integral values must not pick up a ".0".
func formatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if math.Trunc(val) == val && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// -----------------------------------------------------------------------------
// JSONL Codec
// -----------------------------------------------------------------------------

// jsonlCodec implements Codec using JSON Lines, one record per line.
type jsonlCodec struct{}

// NewJSONLCodec creates a JSONL codec. Unlike CSV, JSONL carries native
// number types, so inference over it never widens ids to strings.
func NewJSONLCodec() Codec {
	return &jsonlCodec{}
}

func (j *jsonlCodec) Name() string { return "jsonl" }

func (j *jsonlCodec) Extension() string { return ".jsonl" }

func (j *jsonlCodec) Encode(w io.Writer, records []Record) error {
	enc := jsonCodec.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (j *jsonlCodec) Decode(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := jsonCodec.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
