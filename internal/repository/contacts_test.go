package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
)

func openTestStore(t *testing.T) *ContactStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "contacts.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })
	store := NewContactStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// idempotent
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() second call error = %v", err)
	}
	return store
}

func TestContactStoreUpsertOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	recs := []index.Record{
		{ID: "a", Email: "a@x.io", Context: "first", Domain: "x.io", From: "m.json", RunID: "r1"},
		{ID: "b", Email: "b@x.io", Context: "second", Domain: "x.io", From: "m.json", RunID: "r1"},
	}
	if err := store.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	recs[0].Context = "rewritten"
	recs[0].RunID = "r2"
	if err := store.Upsert(ctx, recs[:1]); err != nil {
		t.Fatalf("Upsert() again error = %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	got, err := store.Contact(ctx, "a")
	if err != nil {
		t.Fatalf("Contact() error = %v", err)
	}
	if got.Context != "rewritten" || got.RunID != "r2" || got.From != "m.json" {
		t.Errorf("Contact() = %+v", got)
	}
	if _, err := store.Contact(ctx, "zzz"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Contact(missing) error = %v, want ErrNotFound", err)
	}
}

func TestContactStoreRegisterSource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	meta := index.SourceMeta{ID: "s1", Title: "Dump", Group: "g", Discovered: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := index.RegisterSource(ctx, store, meta); err != nil {
		t.Fatalf("RegisterSource() error = %v", err)
	}
	meta.Title = "Dump v2"
	if _, err := index.RegisterSource(ctx, store, meta); err != nil {
		t.Fatalf("RegisterSource() again error = %v", err)
	}
	n, err := store.scalar(ctx, "SELECT COUNT(*) FROM sources WHERE title = ?", []any{"Dump v2"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("sources named Dump v2 = %d, want 1", n)
	}
}

func TestIndexerIntoSQLiteIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	body, _ := json.Marshal(map[string]map[string]string{
		"Alice@Example.COM": {"email_context": "ach me at Alice@Example.COM, cc bob@x", "FROM": "memo"},
		"bob@x.io":          {"email_context": "e.COM, cc bob@x.io", "FROM": "memo"},
	})
	if err := os.WriteFile(filepath.Join(dir, "memo.json"), body, 0o644); err != nil {
		t.Fatal(err)
	}

	ix := index.New(store, index.Config{BatchSize: 1, IDSource: "src"}, nil)
	for i := 0; i < 2; i++ {
		rep, err := ix.Run(context.Background(), dir)
		if err != nil {
			t.Fatalf("Run() #%d error = %v", i, err)
		}
		if rep.Records != 2 || rep.Batches != 2 {
			t.Errorf("Run() #%d report = %+v", i, rep)
		}
	}
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2 after two runs", n)
	}
}

func TestOpenPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := OpenPostgres(ctx, Config{DSN: dsn, DialTimeout: 5 * time.Second}, nil)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer db.Close(nil)
	if err := db.HealthCheck(ctx, 2*time.Second); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	store := NewContactStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	recs := []index.Record{
		{ID: "pg-test", Email: "pg@x.io", Context: "old"},
		{ID: "pg-test", Email: "pg@x.io", Context: "new"},
	}
	if err := store.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert() with a repeated id error = %v", err)
	}
	got, err := store.Contact(ctx, "pg-test")
	if err != nil {
		t.Fatal(err)
	}
	if got.Context != "new" {
		t.Errorf("Contact().Context = %q, want new", got.Context)
	}
}

func TestContactStoreUpsertRepeatedIDsInBatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	recs := []index.Record{
		{ID: "a", Email: "a@x.io", Context: "old", Domain: "x.io"},
		{ID: "b", Email: "b@x.io", Context: "only", Domain: "x.io"},
		{ID: "a", Email: "a@x.io", Context: "new", Domain: "x.io"},
	}
	if err := store.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	got, err := store.Contact(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Context != "new" {
		t.Errorf("Contact(a).Context = %q, want last record to win", got.Context)
	}
}

func TestCollapseByID(t *testing.T) {
	got := collapseByID([]index.Record{
		{ID: "a", Context: "1"}, {ID: "b"}, {ID: "a", Context: "2"}, {ID: "c"}, {ID: "b", Context: "3"},
	})
	want := []index.Record{{ID: "a", Context: "2"}, {ID: "b", Context: "3"}, {ID: "c"}}
	if len(got) != len(want) {
		t.Fatalf("collapseByID() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collapseByID()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestContactStoreUpsertSplitsLargeBatches(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	per := maxBindParams / len(contactColumns)
	recs := make([]index.Record, 2*per+17)
	for i := range recs {
		recs[i] = index.Record{ID: fmt.Sprintf("id-%05d", i), Email: fmt.Sprintf("u%d@x.io", i), Domain: "x.io"}
	}
	if chunks := chunkRows(recs, len(contactColumns)); len(chunks) != 3 || len(chunks[2]) != 17 {
		t.Fatalf("chunkRows() gave %d chunks", len(chunks))
	}
	if err := store.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(recs) {
		t.Errorf("Count() = %d, want %d", n, len(recs))
	}
}
