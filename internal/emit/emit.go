// Package emit writes extraction results as JSON artifacts.
package emit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// ObjectEntry is one value of a ShapeObject artifact, keyed by address.
type ObjectEntry struct {
	Context string `json:"email_context"`
	ID      string `json:"ID"`
	From    string `json:"FROM"`
}

// RowEntry is one element of a ShapeRows artifact.
type RowEntry struct {
	Email   string            `json:"email"`
	Context map[string]string `json:"email_context"`
}

type Emitter struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{dir: dir, logger: logger}
}

// Emit writes res for doc and returns the artifact path. fp is the
// document's content fingerprint, used to disambiguate name clashes.
func (e *Emitter) Emit(doc ingest.RawDocument, fp string, res extract.Result) (string, error) {
	body, err := Marshal(doc, res)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("output dir: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, ".emit-*.tmp")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	stem := doc.Stem()
	candidates := []string{stem + ".json"}
	if len(fp) >= 12 {
		candidates = append(candidates, stem+"-"+fp[:12]+".json")
	}
	for _, name := range candidates {
		dst := filepath.Join(e.dir, name)
		// Link fails if dst exists, so the first writer keeps the name.
		err := os.Link(tmp.Name(), dst)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			err = writeExclusive(dst, body)
		}
		if err == nil {
			e.logger.Debug("emit.written", "name", doc.Name, "artifact", dst, "records", res.Len())
			return dst, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("place artifact: %w", err)
		}
	}
	return "", fmt.Errorf("place artifact: %s: %w", stem, fs.ErrExist)
}

// Marshal renders res in its artifact shape: indented, without HTML
// escaping.
func Marshal(doc ingest.RawDocument, res extract.Result) ([]byte, error) {
	var v any
	switch res.Shape {
	case extract.ShapeRows:
		rows := make([]RowEntry, 0, len(res.Rows))
		for _, r := range res.Rows {
			rows = append(rows, RowEntry{Email: r.Address, Context: r.Context})
		}
		v = rows
	default:
		obj := make(map[string]ObjectEntry, len(res.Records))
		for _, r := range res.Records {
			obj[r.Address] = ObjectEntry{Context: r.Context, ID: r.Fingerprint, From: doc.Stem()}
		}
		v = obj
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// writeExclusive is the fallback for filesystems without hard links.
func writeExclusive(dst string, body []byte) error {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
