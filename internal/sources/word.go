package sources

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tsawler/tabula/docx"
	"github.com/tsawler/tabula/odt"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

type textReader interface {
	Text() (string, error)
	Close() error
}

// wordDoc covers paragraph-oriented office documents. The body is read
// once; the classifier walks it paragraph by paragraph.
type wordDoc struct {
	env    *Env
	doc    ingest.RawDocument
	r      textReader
	text   string
	loaded bool
}

func openWord(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	var (
		r   textReader
		err error
	)
	switch doc.Ext {
	case "odt":
		r, err = odt.Open(doc.Path)
	default:
		r, err = docx.Open(doc.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.Ext, err)
	}
	return &wordDoc{env: env, doc: doc, r: r}, nil
}

func (d *wordDoc) body() (string, error) {
	if !d.loaded {
		t, err := d.r.Text()
		if err != nil {
			return "", err
		}
		d.text, d.loaded = t, true
	}
	return d.text, nil
}

func (d *wordDoc) Classify(_ context.Context, c *classify.Classifier) (classify.Verdict, error) {
	text, err := d.body()
	if err != nil {
		return classify.Verdict{}, err
	}
	return c.Classify(splitChunks(text, "\n"))
}

func (d *wordDoc) Extract(ctx context.Context) (extract.Result, error) {
	text, err := d.body()
	if err != nil {
		return extract.Result{}, err
	}
	set := extract.NewSet(d.doc.Name)
	if _, err := d.env.Extractor.ScanTextContext(ctx, text, d.env.Windows.Page, set); err != nil {
		return extract.Result{}, err
	}
	return set.Result(), nil
}

func (d *wordDoc) Close() error { return d.r.Close() }

// splitChunks serves text split on sep, one piece per pull.
func splitChunks(text, sep string) classify.ChunkSource {
	rest := text
	done := text == ""
	return classify.FuncSource(func() (string, error) {
		if done {
			return "", io.EOF
		}
		chunk, tail, found := strings.Cut(rest, sep)
		if !found {
			done = true
			return chunk, nil
		}
		rest = tail
		return chunk + sep, nil
	})
}
