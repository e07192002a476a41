package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strata-lake/strata/strata"
)

type stubFetcher struct {
	records []strata.Record
	err     error
}

func (s *stubFetcher) Fetch(_ context.Context) ([]strata.Record, error) {
	return s.records, s.err
}

var userFields = []string{"id", "name", "username", "email", "phone", "website"}

func leanne() strata.Record {
	return strata.Record{
		"id":       float64(1),
		"name":     "Leanne Graham",
		"username": "Bret",
		"email":    "Sincere@april.biz",
		"phone":    "1-770-736-8031 x56442",
		"website":  "hildegard.org",
	}
}

func newTestExtractor(t *testing.T, fetcher Fetcher, store strata.Store, opts ...Option) *Extractor {
	t.Helper()
	layout := strata.NewSnapshotLayout("raw/jsonplaceholder/users/", "users", ".csv")
	codec, err := strata.NewCSVCodec(userFields)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	})}, opts...)
	return New(fetcher, store, layout, codec, "data-bucket", zerolog.Nop(), opts...)
}

func TestExtractor_Run(t *testing.T) {
	ctx := context.Background()
	store := strata.NewMemory()
	ext := newTestExtractor(t, &stubFetcher{records: []strata.Record{leanne()}}, store)

	result, err := ext.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	wantKey := "raw/jsonplaceholder/users/users_20260901T120000Z.csv"
	if result.Key != wantKey {
		t.Errorf("expected key %q, got %q", wantKey, result.Key)
	}
	if result.Bucket != "data-bucket" || result.Rows != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	rc, err := store.Get(ctx, wantKey)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if lines[0] != "id,name,username,email,phone,website" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,Leanne Graham,Bret,") {
		t.Errorf("unexpected row: %q", lines[1])
	}
}

func TestExtractor_Run_SourceFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := strata.NewMemory()
	ext := newTestExtractor(t, &stubFetcher{err: errors.New("connection refused")}, store)

	_, err := ext.Run(ctx)
	if !errors.Is(err, strata.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got: %v", err)
	}

	keys, err := store.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("expected zero writes on source failure, got %v", keys)
	}
}

func TestExtractor_Run_SameSecondCollision(t *testing.T) {
	ctx := context.Background()
	store := strata.NewMemory()
	fetcher := &stubFetcher{records: []strata.Record{leanne()}}
	ext := newTestExtractor(t, fetcher, store)

	first, err := ext.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ext.Run(ctx)
	if err != nil {
		t.Fatalf("second run with same timestamp failed: %v", err)
	}

	if first.Key == second.Key {
		t.Errorf("expected distinct keys, both got %q", first.Key)
	}
	if !strings.HasPrefix(second.Key, "raw/jsonplaceholder/users/users_20260901T120000Z_") {
		t.Errorf("expected suffixed key, got %q", second.Key)
	}

	keys, err := store.List(ctx, "raw/jsonplaceholder/users/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 snapshots, got %v", keys)
	}
}

func TestExtractor_Run_EmptyDatasetStillLandsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := strata.NewMemory()
	ext := newTestExtractor(t, &stubFetcher{records: nil}, store)

	result, err := ext.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Rows != 0 {
		t.Errorf("expected 0 rows, got %d", result.Rows)
	}

	rc, err := store.Get(ctx, result.Key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if strings.TrimSpace(string(data)) != "id,name,username,email,phone,website" {
		t.Errorf("expected header-only snapshot, got %q", data)
	}
}

func TestExtractor_Run_GzipCompressor(t *testing.T) {
	ctx := context.Background()
	store := strata.NewMemory()
	ext := newTestExtractor(t, &stubFetcher{records: []strata.Record{leanne()}}, store,
		WithCompressor(strata.NewGzipCompressor()))

	result, err := ext.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(result.Key, ".csv.gz") {
		t.Fatalf("expected .csv.gz key, got %q", result.Key)
	}

	rc, err := store.Get(ctx, result.Key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	dec, err := strata.DecompressorForKey(result.Key).Decompress(rc)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	data, _ := io.ReadAll(dec)
	if !strings.HasPrefix(string(data), "id,name,") {
		t.Errorf("unexpected decompressed content: %q", data)
	}
}
