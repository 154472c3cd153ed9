package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/emit"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
)

// rowEntry is emit.RowEntry with untyped context values, so artifacts
// written by other tools index as well.
type rowEntry struct {
	Email   string         `json:"email"`
	Context map[string]any `json:"email_context"`
}

// LoadArtifact reads one artifact and converts it to records. The shape is
// taken from the top-level JSON value. Any parse or schema failure is
// reported as ErrMalformedArtifact.
func LoadArtifact(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeArtifact(filepath.Base(path), raw)
}

// DecodeArtifact converts the bytes of the artifact named file to records.
// IDSource and RunID are left for the caller.
func DecodeArtifact(file string, raw []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed(file, "parse", err)
	}
	if dec.More() {
		return nil, malformed(file, "parse", fmt.Errorf("trailing data after top-level value"))
	}

	switch v.(type) {
	case map[string]any:
		if err := objectValidator.Validate(v); err != nil {
			return nil, malformed(file, "schema", err)
		}
		var entries map[string]emit.ObjectEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, malformed(file, "parse", err)
		}
		return objectRecords(file, entries), nil
	case []any:
		if err := rowsValidator.Validate(v); err != nil {
			return nil, malformed(file, "schema", err)
		}
		var rows []rowEntry
		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		if err := d.Decode(&rows); err != nil {
			return nil, malformed(file, "parse", err)
		}
		return rowRecords(file, rows)
	default:
		return nil, malformed(file, "schema", fmt.Errorf("top-level value is %T, want object or array", v))
	}
}

func malformed(file, stage string, err error) error {
	return common.NewAppError("MALFORMED_ARTIFACT", fmt.Sprintf("%s: %s", file, stage),
		fmt.Errorf("%w: %v", common.ErrMalformedArtifact, err))
}

// objectRecords walks address keys in sorted order; decoded maps carry no
// order of their own.
func objectRecords(file string, entries map[string]emit.ObjectEntry) []Record {
	addrs := make([]string, 0, len(entries))
	for a := range entries {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	out := make([]Record, 0, len(addrs))
	for _, a := range addrs {
		e := entries[a]
		email := extract.Fold(a)
		id := e.ID
		if id == "" {
			id = extract.Fingerprint(email, e.Context)
		}
		from := file
		if e.From != "" {
			from = e.From + " " + file
		}
		out = append(out, Record{
			ID:      id,
			Email:   email,
			Context: e.Context,
			Domain:  extract.Fold(domainOf(a)),
			From:    from,
		})
	}
	return out
}

func rowRecords(file string, rows []rowEntry) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if r.Context == nil {
			r.Context = map[string]any{}
		}
		// map keys marshal sorted
		ctx, err := json.Marshal(r.Context)
		if err != nil {
			return nil, malformed(file, "context", err)
		}
		email := extract.Fold(r.Email)
		out = append(out, Record{
			ID:      extract.Fingerprint(email, string(ctx)),
			Email:   email,
			Context: string(ctx),
			Domain:  extract.Fold(domainOf(r.Email)),
			From:    file,
		})
	}
	return out, nil
}
