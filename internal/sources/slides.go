package sources

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tsawler/tabula/pptx"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

type slidesDoc struct {
	env *Env
	doc ingest.RawDocument
	r   *pptx.Reader
}

func openSlides(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	r, err := pptx.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	return &slidesDoc{env: env, doc: doc, r: r}, nil
}

func (d *slidesDoc) slide(i int) (string, error) {
	s, err := d.r.Slide(i)
	if err != nil {
		return "", err
	}
	return s.GetText(), nil
}

func (d *slidesDoc) Classify(_ context.Context, c *classify.Classifier) (classify.Verdict, error) {
	n := d.r.SlideCount()
	next := 0
	return c.Classify(classify.FuncSource(func() (string, error) {
		if next >= n {
			return "", io.EOF
		}
		next++
		return d.slide(next - 1)
	}))
}

// Extract scans the deck as one text so a context can run across slides.
func (d *slidesDoc) Extract(ctx context.Context) (extract.Result, error) {
	var sb strings.Builder
	for i := 0; i < d.r.SlideCount(); i++ {
		if err := ctx.Err(); err != nil {
			return extract.Result{}, err
		}
		t, err := d.slide(i)
		if err != nil {
			return extract.Result{}, fmt.Errorf("slide %d: %w", i+1, err)
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t)
	}
	set := extract.NewSet(d.doc.Name)
	if _, err := d.env.Extractor.ScanTextContext(ctx, sb.String(), d.env.Windows.Page, set); err != nil {
		return extract.Result{}, err
	}
	return set.Result(), nil
}

func (d *slidesDoc) Close() error { return d.r.Close() }
