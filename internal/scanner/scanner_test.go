package scanner

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/internal/catalog"
	"github.com/strata-lake/strata/strata"
)

const prefix = "raw/jsonplaceholder/users/"

func putCSV(t *testing.T, store strata.Store, key, content string) {
	t.Helper()
	if err := store.Put(context.Background(), key, bytes.NewReader([]byte(content))); err != nil {
		t.Fatal(err)
	}
}

func putGzipCSV(t *testing.T, store strata.Store, key, content string) {
	t.Helper()
	var buf bytes.Buffer
	w, err := strata.NewGzipCompressor().Compress(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), key, &buf); err != nil {
		t.Fatal(err)
	}
}

func newTestScanner(store strata.Store, cat strata.Catalog, opts ...Option) *Scanner {
	return New(store, cat, "users_db", "users", zerolog.Nop(), opts...)
}

func TestScanner_EmptyPrefix(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	s := newTestScanner(store, cat)

	_, err := s.Scan(context.Background(), prefix)
	if !errors.Is(err, strata.ErrNoSnapshots) {
		t.Fatalf("expected ErrNoSnapshots, got: %v", err)
	}

	if _, err := cat.DescribeTable(context.Background(), "users_db", "users"); !errors.Is(err, strata.ErrTableNotFound) {
		t.Errorf("expected nothing published, got: %v", err)
	}
}

func TestScanner_SingleSnapshot(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	putCSV(t, store, prefix+"users_20260901T120000Z.csv",
		"id,name,username,email,phone,website\n1,Leanne Graham,Bret,Sincere@april.biz,1-770-736-8031 x56442,hildegard.org\n")

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}

	if def.Namespace != "users_db" || def.Name != "users" {
		t.Errorf("unexpected table identity: %s.%s", def.Namespace, def.Name)
	}
	if def.Location != strata.ResourceRef(prefix) {
		t.Errorf("unexpected location: %s", def.Location)
	}
	if len(def.Columns) != 6 {
		t.Fatalf("expected 6 columns, got %v", def.Columns)
	}
	if id, ok := def.Column("id"); !ok || id.Type != strata.TypeBigInt {
		t.Errorf("expected bigint id column, got %+v", id)
	}
	if phone, ok := def.Column("phone"); !ok || phone.Type != strata.TypeString {
		t.Errorf("expected string phone column, got %+v", phone)
	}
}

func TestScanner_UnionsColumnsAcrossFiles(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "id,name\n1,Leanne Graham\n")
	putCSV(t, store, prefix+"users_20260901T130000Z.csv", "id,email\n2,Shanna@melissa.tv\n")

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"id", "name", "email"} {
		if _, ok := def.Column(name); !ok {
			t.Errorf("expected column %q in union, got %v", name, def.Columns)
		}
	}
}

func TestScanner_WidensTypesAcrossFiles(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "v\n1\n")
	putCSV(t, store, prefix+"users_20260901T130000Z.csv", "v\n2.5\n")

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := def.Column("v"); v.Type != strata.TypeDouble {
		t.Errorf("expected double, got %s", v.Type)
	}
}

func TestScanner_MergePolicyRetainsRemovedColumns(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	s := newTestScanner(store, cat)

	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "id,legacy\n1,old\n")
	if _, err := s.Scan(context.Background(), prefix); err != nil {
		t.Fatal(err)
	}

	// The next snapshot drops "legacy"; newest-first sampling with limit 1
	// sees only the new shape.
	putCSV(t, store, prefix+"users_20260901T130000Z.csv", "id,email\n2,Shanna@melissa.tv\n")
	limited := newTestScanner(store, cat, WithSampleLimit(1))
	def, err := limited.Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := def.Column("legacy"); !ok {
		t.Errorf("expected removed column retained under merge policy, got %v", def.Columns)
	}
	if _, ok := def.Column("email"); !ok {
		t.Errorf("expected new column published, got %v", def.Columns)
	}
}

func TestScanner_ReplacePolicyDropsRemovedColumns(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	replace := strata.UpdatePolicy{Update: strata.UpdateBehaviorReplace, Delete: strata.DeleteBehaviorDrop}

	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "id,legacy\n1,old\n")
	if _, err := newTestScanner(store, cat, WithPolicy(replace)).Scan(context.Background(), prefix); err != nil {
		t.Fatal(err)
	}

	putCSV(t, store, prefix+"users_20260901T130000Z.csv", "id,email\n2,x@y.z\n")
	s := newTestScanner(store, cat, WithPolicy(replace), WithSampleLimit(1))
	def, err := s.Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := def.Column("legacy"); ok {
		t.Errorf("expected replaced definition without legacy, got %v", def.Columns)
	}
}

func TestScanner_ReadsCompressedSnapshots(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	putGzipCSV(t, store, prefix+"users_20260901T120000Z.csv.gz", "id,name\n1,Leanne Graham\n")

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Columns) != 2 {
		t.Errorf("expected 2 columns from compressed snapshot, got %v", def.Columns)
	}
}

func TestScanner_ParquetSnapshotsInferExactly(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()

	codec, err := strata.NewParquetCodec([]strata.ParquetField{
		{Name: "id", Type: strata.TypeBigInt},
		{Name: "name", Type: strata.TypeString},
		{Name: "score", Type: strata.TypeDouble, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = codec.Encode(&buf, []strata.Record{
		{"id": int64(1), "name": "Leanne Graham", "score": nil},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), prefix+"users_20260901T120000Z.parquet", &buf); err != nil {
		t.Fatal(err)
	}

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := def.Column("id"); id.Type != strata.TypeBigInt {
		t.Errorf("expected bigint id from parquet schema, got %s", id.Type)
	}
	if name, _ := def.Column("name"); name.Type != strata.TypeString {
		t.Errorf("expected string name, got %s", name.Type)
	}
	if score, ok := def.Column("score"); !ok || score.Type != strata.TypeString {
		// An all-null column carries no observed values; string is the
		// conservative published type.
		t.Errorf("expected all-null score published as string, got %+v", score)
	}
}

func TestScanner_IgnoresForeignObjects(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "id\n1\n")
	putCSV(t, store, prefix+"manifest.txt", "not a snapshot")
	putCSV(t, store, prefix+"nested/users_20260901T110000Z.csv", "other\nx\n")

	def, err := newTestScanner(store, cat).Scan(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Columns) != 1 || def.Columns[0].Name != "id" {
		t.Errorf("expected only the direct snapshot to be sampled, got %v", def.Columns)
	}
}

func TestScanner_CorruptSnapshotFailsScan(t *testing.T) {
	store := strata.NewMemory()
	cat := catalog.NewMemory()
	s := newTestScanner(store, cat)

	putCSV(t, store, prefix+"users_20260901T120000Z.csv", "id,name\n1,Leanne Graham\n")
	if _, err := s.Scan(context.Background(), prefix); err != nil {
		t.Fatal(err)
	}

	// A later truncated gzip file must fail the scan and leave the
	// published definition intact.
	putCSV(t, store, prefix+"users_20260901T130000Z.csv.gz", "not gzip")
	_, err := s.Scan(context.Background(), prefix)
	if !errors.Is(err, strata.ErrScanFailure) {
		t.Fatalf("expected ErrScanFailure, got: %v", err)
	}

	def, err := cat.DescribeTable(context.Background(), "users_db", "users")
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Columns) != 2 {
		t.Errorf("expected prior definition untouched, got %v", def.Columns)
	}
}
