package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// xmlDoc keeps the raw content for the probe and scans the character data
// and attribute values for addresses.
type xmlDoc struct {
	env *Env
	doc ingest.RawDocument
	raw string
}

func openXML(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	raw, err := readDecoded(doc.Path, env.Charset)
	if err != nil {
		return nil, err
	}
	return &xmlDoc{env: env, doc: doc, raw: raw}, nil
}

func (d *xmlDoc) Classify(_ context.Context, _ *classify.Classifier) (classify.Verdict, error) {
	return classify.ProbeMarkup(d.env.Extractor, d.raw), nil
}

func (d *xmlDoc) Extract(ctx context.Context) (extract.Result, error) {
	text, err := xmlText(d.raw)
	if err != nil {
		// Dumps are often truncated mid-element; the raw markup still holds
		// whatever addresses made it in.
		d.env.Logger.Warn("sources.xml.malformed", "name", d.doc.Name, "error", err)
		text = d.raw
	}
	set := extract.NewSet(d.doc.Name)
	if _, err := d.env.Extractor.ScanTextContext(ctx, text, d.env.Windows.Markup, set); err != nil {
		return extract.Result{}, err
	}
	return set.Result(), nil
}

func (d *xmlDoc) Close() error { return nil }

// xmlText flattens a document to its character data and attribute values,
// one node per line.
func xmlText(raw string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	// content is already UTF-8; ignore whatever the prolog claims
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			for _, a := range t.Attr {
				if v := strings.TrimSpace(a.Value); v != "" {
					sb.WriteString(v)
					sb.WriteByte('\n')
				}
			}
		case xml.CharData:
			if v := strings.TrimSpace(string(t)); v != "" {
				sb.WriteString(v)
				sb.WriteByte('\n')
			}
		}
	}
}
