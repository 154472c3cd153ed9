package sources

import (
	"context"
	"fmt"
	"io"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// pdfDoc reads a PDF one page at a time. Pages pulled by the classifier are
// kept so extraction does not decode them twice.
type pdfDoc struct {
	env   *Env
	doc   ingest.RawDocument
	r     *reader.Reader
	pages map[int]string
}

func openPDF(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	r, err := reader.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfDoc{env: env, doc: doc, r: r, pages: make(map[int]string)}, nil
}

func (d *pdfDoc) PageCount() (int, error) { return d.r.PageCount() }

func (d *pdfDoc) readPage(i int) (string, error) {
	text, warns, err := tabula.FromReader(d.r).Pages(i + 1).Text()
	if err != nil {
		return "", err
	}
	if len(warns) > 0 {
		d.env.Logger.Debug("sources.pdf.warnings", "name", d.doc.Name, "page", i+1, "warnings", len(warns))
	}
	return text, nil
}

// PageText hands out a page the classifier already read, once, and
// otherwise decodes it.
func (d *pdfDoc) PageText(i int) (string, error) {
	if t, ok := d.pages[i]; ok {
		delete(d.pages, i)
		return t, nil
	}
	return d.readPage(i)
}

func (d *pdfDoc) Classify(_ context.Context, c *classify.Classifier) (classify.Verdict, error) {
	n, err := d.PageCount()
	if err != nil {
		return classify.Verdict{}, err
	}
	next := 0
	return c.Classify(classify.FuncSource(func() (string, error) {
		if next >= n {
			return "", io.EOF
		}
		i := next
		next++
		t, err := d.readPage(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		d.pages[i] = t
		return t, nil
	}))
}

func (d *pdfDoc) Extract(ctx context.Context) (extract.Result, error) {
	set := extract.NewSet(d.doc.Name)
	st, err := d.env.Extractor.ScanPages(ctx, d, d.env.Windows.Page, set)
	if err != nil {
		return extract.Result{}, err
	}
	d.env.Logger.Debug("sources.pdf.scanned",
		"name", d.doc.Name,
		"pages", st.Pages,
		"pages_read", st.PagesRead,
		"precheck_miss", st.PrecheckMiss,
		"records", st.Matches,
	)
	return set.Result(), nil
}

func (d *pdfDoc) Close() error { return d.r.Close() }
