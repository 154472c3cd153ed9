package index

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

const contactMapping = `{
  "mappings": {
    "properties": {
      "email":         {"type": "keyword"},
      "email_context": {"type": "text"},
      "domain":        {"type": "keyword"},
      "from":          {"type": "text"},
      "id_source":     {"type": "keyword"},
      "run_id":        {"type": "keyword"}
    }
  }
}`

// ElasticSink upserts records into an Elasticsearch index with bulk index
// actions keyed by record id. Source metadata goes to "<index>-sources".
type ElasticSink struct {
	es     *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// NewElasticSink builds a client for cfg. transport may be nil.
func NewElasticSink(cfg common.ElasticConfig, transport http.RoundTripper, logger *slog.Logger) (*ElasticSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if transport == nil && cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev clusters
		transport = t
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticSink{es: es, index: cfg.Index, logger: logger}, nil
}

// EnsureIndex creates the contact index with its mapping when missing.
func (s *ElasticSink) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return transportErr("index exists", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return transportErr("index exists", fmt.Errorf("status %s", res.Status()))
	}

	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithBody(strings.NewReader(contactMapping)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return transportErr("create index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// a concurrent creator won the race
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return transportErr("create index", fmt.Errorf("%s: %s", res.Status(), body))
	}
	s.logger.Info("elastic.index.created", "index", s.index)
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Upsert sends records as one bulk request.
func (s *ElasticSink) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		meta := map[string]map[string]string{"index": {"_id": r.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode action: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	res, err := s.es.Bulk(&buf,
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return transportErr("bulk", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return transportErr("bulk", fmt.Errorf("%s: %s", res.Status(), body))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return transportErr("bulk response", err)
	}
	if !br.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range br.Items {
		for _, op := range item {
			if op.Error != nil {
				if failed == 0 {
					first = fmt.Sprintf("%s: %s: %s", op.ID, op.Error.Type, op.Error.Reason)
				}
				failed++
			}
		}
	}
	return transportErr("bulk", fmt.Errorf("%d of %d items failed, first %s", failed, len(records), first))
}

// RegisterSource stores meta in the sources index under its id.
func (s *ElasticSink) RegisterSource(ctx context.Context, meta SourceMeta) error {
	body, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode source: %w", err)
	}
	res, err := s.es.Index(s.index+"-sources", bytes.NewReader(body),
		s.es.Index.WithDocumentID(meta.ID),
		s.es.Index.WithContext(ctx),
	)
	if err != nil {
		return transportErr("index source", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		return transportErr("index source", fmt.Errorf("%s: %s", res.Status(), b))
	}
	return nil
}

func transportErr(op string, err error) error {
	return common.NewAppError("TRANSPORT_ERROR", "elasticsearch "+op, fmt.Errorf("%w: %v", common.ErrTransport, err))
}
