package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
)

// memSink is an in-memory Sink keyed by record id.
type memSink struct {
	mu      sync.Mutex
	docs    map[string]Record
	batches []int
	fail    int // fail this many calls before succeeding
	calls   int
}

func newMemSink() *memSink { return &memSink{docs: map[string]Record{}} }

func (m *memSink) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail > 0 {
		m.fail--
		return errors.New("connection refused")
	}
	m.batches = append(m.batches, len(records))
	for _, r := range records {
		m.docs[r.ID] = r
	}
	return nil
}

func (m *memSink) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for id := range m.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestDecodeObjectArtifact(t *testing.T) {
	raw := []byte(`{
	  "Alice@Example.COM": {"email_context": "reach Alice@Example.COM", "ID": "fixed-id", "FROM": "memo"},
	  "bob@X.io": {"email_context": "cc bob@X.io"}
	}`)
	recs, err := DecodeArtifact("memo.json", raw)
	if err != nil {
		t.Fatalf("DecodeArtifact() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	a, b := recs[0], recs[1]
	if a.ID != "fixed-id" || a.Email != "alice@example.com" || a.Domain != "example.com" || a.From != "memo memo.json" {
		t.Errorf("first record = %+v", a)
	}
	if b.ID != extract.Fingerprint("bob@x.io", "cc bob@X.io") || b.From != "memo.json" || b.Domain != "x.io" {
		t.Errorf("second record = %+v", b)
	}
}

func TestDecodeRowsArtifact(t *testing.T) {
	raw := []byte(`[{"email": "Ann@Corp.org", "email_context": {"name": "Ann", "age": 41, "city": "Oslo"}}]`)
	recs, err := DecodeArtifact("sheet.json", raw)
	if err != nil {
		t.Fatalf("DecodeArtifact() error = %v", err)
	}
	want := `{"age":41,"city":"Oslo","name":"Ann"}`
	if recs[0].Context != want {
		t.Errorf("context = %s, want %s", recs[0].Context, want)
	}
	if recs[0].ID != extract.Fingerprint("ann@corp.org", want) || recs[0].From != "sheet.json" {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"a@b.co": `,
		"scalar":            `42`,
		"missing context":   `{"a@b.co": {"ID": "x"}}`,
		"context not text":  `{"a@b.co": {"email_context": 7}}`,
		"row without email": `[{"email_context": {}}]`,
		"nested row value":  `[{"email": "a@b.co", "email_context": {"k": {"x": 1}}}]`,
		"trailing data":     `{} {}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeArtifact("x.json", []byte(raw))
			if !errors.Is(err, common.ErrMalformedArtifact) {
				t.Errorf("DecodeArtifact() error = %v, want ErrMalformedArtifact", err)
			}
		})
	}
}

func TestIndexerBatchSizes(t *testing.T) {
	dir := t.TempDir()
	for f := 0; f < 12; f++ {
		entries := map[string]map[string]string{}
		for i := 0; i < 100; i++ {
			entries[fmt.Sprintf("u%02d-%03d@x.io", f, i)] = map[string]string{"email_context": "ctx"}
		}
		writeJSON(t, dir, fmt.Sprintf("doc-%02d.json", f), entries)
	}

	sink := newMemSink()
	ix := New(sink, Config{BatchSize: 500, IDSource: "src-1"}, nil)
	rep, err := ix.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if fmt.Sprint(sink.batches) != "[500 500 200]" {
		t.Errorf("batches = %v, want [500 500 200]", sink.batches)
	}
	if rep.Records != 1200 || rep.Batches != 3 || rep.Files != 12 {
		t.Errorf("report = %+v", rep)
	}
	for _, r := range sink.docs {
		if r.IDSource != "src-1" || r.RunID != rep.RunID {
			t.Fatalf("record = %+v, want id_source and run_id stamped", r)
		}
	}
}

func TestIndexerIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "a.json", map[string]map[string]string{
		"a@x.io": {"email_context": "one"},
		"b@x.io": {"email_context": "two"},
	})
	writeJSON(t, dir, "b.json", []map[string]any{
		{"email": "c@y.io", "email_context": map[string]string{"name": "C"}},
	})

	sink := newMemSink()
	ix := New(sink, Config{BatchSize: 2}, nil)
	if _, err := ix.Run(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	first := sink.ids()
	if _, err := ix.Run(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	second := sink.ids()
	if len(first) != 3 || fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("ids after reruns = %v then %v", first, second)
	}
}

func TestIndexerMalformedAndSkipped(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "good.json", map[string]map[string]string{"a@x.io": {"email_context": "ok"}})
	writeJSON(t, dir, "empty.json", map[string]any{})
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := newMemSink()
	rep, err := New(sink, Config{}, nil).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Files != 3 || rep.Records != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Malformed) != 1 || rep.Malformed[0].Name != "bad.json" {
		t.Errorf("malformed = %+v", rep.Malformed)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0].Name != "empty.json" {
		t.Errorf("skipped = %+v", rep.Skipped)
	}
}

func TestIndexerRetryThenSucceed(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "a.json", map[string]map[string]string{"a@x.io": {"email_context": "ok"}})

	sink := newMemSink()
	sink.fail = 2
	ix := New(sink, Config{Retries: 3}, nil)
	ix.sleep = noSleep
	rep, err := ix.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.calls != 3 || rep.Records != 1 || len(rep.FailedBatches) != 0 {
		t.Errorf("calls = %d, report = %+v", sink.calls, rep)
	}
}

func TestIndexerSurfacesTransportFailure(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, "a.json", map[string]map[string]string{"a@x.io": {"email_context": "1"}, "b@x.io": {"email_context": "2"}})
	writeJSON(t, dir, "b.json", map[string]map[string]string{"c@x.io": {"email_context": "3"}})

	sink := newMemSink()
	sink.fail = 3 // first batch fails all attempts, second goes through
	ix := New(sink, Config{BatchSize: 2, Retries: 2}, nil)
	ix.sleep = noSleep
	rep, err := ix.Run(context.Background(), dir)
	if !errors.Is(err, common.ErrTransport) {
		t.Fatalf("Run() error = %v, want ErrTransport", err)
	}
	if len(rep.FailedBatches) != 1 {
		t.Fatalf("failed batches = %+v", rep.FailedBatches)
	}
	fb := rep.FailedBatches[0]
	if fb.Records != 2 || fmt.Sprint(fb.Files) != "[a.json]" || fb.Err == nil {
		t.Errorf("failed batch = %+v", fb)
	}
	if rep.Records != 1 || rep.Batches != 1 {
		t.Errorf("report = %+v, want the later batch indexed", rep)
	}
}

func TestIndexerMissingDir(t *testing.T) {
	_, err := New(newMemSink(), Config{}, nil).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want ErrInvalidInput", err)
	}
}

type memSources struct{ got []SourceMeta }

func (m *memSources) RegisterSource(_ context.Context, meta SourceMeta) error {
	m.got = append(m.got, meta)
	return nil
}

func TestRegisterSource(t *testing.T) {
	store := &memSources{}
	meta, err := RegisterSource(context.Background(), store, SourceMeta{Title: " Leak dump ", Country: "NO"})
	if err != nil {
		t.Fatalf("RegisterSource() error = %v", err)
	}
	if meta.ID == "" || meta.Discovered.IsZero() || meta.Title != "Leak dump" {
		t.Errorf("meta = %+v", meta)
	}
	if len(store.got) != 1 || store.got[0].ID != meta.ID {
		t.Errorf("stored = %+v", store.got)
	}

	if _, err := RegisterSource(context.Background(), store, SourceMeta{}); !errors.Is(err, common.ErrValidation) {
		t.Errorf("RegisterSource(no title) error = %v, want ErrValidation", err)
	}
}
