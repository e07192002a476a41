package strata

import (
	"bytes"
	"strings"
	"testing"
)

func TestCSVCodec_Encode(t *testing.T) {
	codec, err := NewCSVCodec([]string{"id", "name", "username", "email", "phone", "website"})
	if err != nil {
		t.Fatal(err)
	}

	records := []Record{{
		"id":       float64(1),
		"name":     "Leanne Graham",
		"username": "Bret",
		"email":    "Sincere@april.biz",
		"phone":    "1-770-736-8031 x56442",
		"website":  "hildegard.org",
		"address":  map[string]any{"city": "Gwenborough"},
	}}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, records); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "id,name,username,email,phone,website" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[1] != "1,Leanne Graham,Bret,Sincere@april.biz,1-770-736-8031 x56442,hildegard.org" {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

func TestCSVCodec_AbsentFieldsEncodeEmpty(t *testing.T) {
	codec, err := NewCSVCodec([]string{"id", "name", "email"})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, []Record{{"id": 7}}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[1] != "7,," {
		t.Errorf("expected empty cells for absent fields, got %q", lines[1])
	}
}

func TestCSVCodec_IntegralFloatsHaveNoFraction(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{float64(1), "1"},
		{float64(42), "42"},
		{float64(1.5), "1.5"},
		{int64(9), "9"},
		{nil, ""},
		{true, "true"},
	}
	for _, c := range cases {
		if got := formatScalar(c.in); got != c.want {
			t.Errorf("formatScalar(%v): expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestCSVCodec_Decode(t *testing.T) {
	codec, err := NewCSVCodec([]string{"id", "name"})
	if err != nil {
		t.Fatal(err)
	}

	in := "id,name\n1,Leanne Graham\n2,Ervin Howell\n"
	records, err := codec.Decode(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["id"] != "1" || records[0]["name"] != "Leanne Graham" {
		t.Errorf("unexpected first record: %v", records[0])
	}
}

func TestCSVCodec_Decode_MissingHeader(t *testing.T) {
	codec, err := NewCSVCodec([]string{"id"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := codec.Decode(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestCSVCodec_RejectsBadFieldLists(t *testing.T) {
	for _, fields := range [][]string{nil, {}, {""}, {"id", "id"}} {
		if _, err := NewCSVCodec(fields); err == nil {
			t.Errorf("expected error for field list %v", fields)
		}
	}
}

func TestJSONLCodec_RoundTrip(t *testing.T) {
	codec := NewJSONLCodec()

	in := []Record{
		{"id": float64(1), "name": "Leanne Graham"},
		{"id": float64(2), "name": "Ervin Howell"},
	}

	var buf bytes.Buffer
	if err := codec.Encode(&buf, in); err != nil {
		t.Fatal(err)
	}

	out, err := codec.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0]["name"] != "Leanne Graham" {
		t.Errorf("unexpected record: %v", out[0])
	}
	if out[1]["id"] != float64(2) {
		t.Errorf("expected numeric id to survive, got %T %v", out[1]["id"], out[1]["id"])
	}
}
