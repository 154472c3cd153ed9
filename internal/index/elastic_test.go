package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

// fakeES mimics the slice of the Elasticsearch API the sink uses.
type fakeES struct {
	mu        sync.Mutex
	indexes   map[string]bool
	docs      map[string]map[string]any
	failItems bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(path, "_bulk"):
		f.bulk(w, r)
	case r.Method == http.MethodHead:
		if !f.indexes[path] {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && !strings.Contains(path, "/"):
		f.indexes[path] = true
		io.WriteString(w, `{"acknowledged":true}`)
	case strings.Contains(path, "/_doc/"):
		var doc map[string]any
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.docs[path] = doc
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"result":"created"}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"unexpected request"}`)
	}
}

func (f *fakeES) bulk(w http.ResponseWriter, r *http.Request) {
	index := strings.TrimSuffix(strings.Trim(r.URL.Path, "/"), "/_bulk")
	sc := bufio.NewScanner(r.Body)
	type item struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  any    `json:"error,omitempty"`
	}
	var items []map[string]item
	for sc.Scan() {
		var action map[string]map[string]string
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !sc.Scan() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id := action["index"]["_id"]
		var doc map[string]any
		_ = json.Unmarshal(sc.Bytes(), &doc)
		it := item{ID: id, Status: 200}
		if f.failItems {
			it.Status = 429
			it.Error = map[string]string{"type": "es_rejected_execution_exception", "reason": "queue full"}
		} else {
			f.docs[index+"/_doc/"+id] = doc
		}
		items = append(items, map[string]item{"index": it})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"errors": f.failItems, "items": items})
}

func newFakeES(t *testing.T) (*fakeES, *ElasticSink) {
	t.Helper()
	fake := &fakeES{indexes: map[string]bool{}, docs: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	sink, err := NewElasticSink(common.ElasticConfig{Addresses: []string{srv.URL}, Index: "contacts"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return fake, sink
}

func TestElasticSinkUpsert(t *testing.T) {
	fake, sink := newFakeES(t)
	ctx := context.Background()
	if err := sink.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if !fake.indexes["contacts"] {
		t.Fatal("index not created")
	}
	if err := sink.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}

	recs := []Record{
		{ID: "id-1", Email: "a@x.io", Context: "first", Domain: "x.io", From: "a.json"},
		{ID: "id-2", Email: "b@x.io", Context: "second", Domain: "x.io", From: "a.json"},
	}
	if err := sink.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	recs[0].Context = "rewritten"
	if err := sink.Upsert(ctx, recs[:1]); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(fake.docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(fake.docs))
	}
	doc := fake.docs["contacts/_doc/id-1"]
	if doc["email_context"] != "rewritten" || doc["domain"] != "x.io" {
		t.Errorf("doc = %v", doc)
	}
	if _, ok := doc["ID"]; ok {
		t.Error("id leaked into the document body")
	}
}

func TestElasticSinkItemErrors(t *testing.T) {
	fake, sink := newFakeES(t)
	fake.failItems = true
	err := sink.Upsert(context.Background(), []Record{{ID: "id-1", Email: "a@x.io"}})
	if !errors.Is(err, common.ErrTransport) {
		t.Fatalf("Upsert() error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "es_rejected_execution_exception") {
		t.Errorf("error %q does not name the item failure", err)
	}
}

func TestElasticSinkRegisterSource(t *testing.T) {
	fake, sink := newFakeES(t)
	meta, err := RegisterSource(context.Background(), sink, SourceMeta{ID: "src-9", Title: "Archive"})
	if err != nil {
		t.Fatalf("RegisterSource() error = %v", err)
	}
	doc, ok := fake.docs["contacts-sources/_doc/"+meta.ID]
	if !ok || doc["title"] != "Archive" {
		t.Errorf("source doc = %v", fake.docs)
	}
}
