package sources

import (
	"context"
	"os"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// textDoc is a line-oriented dump. It is always worth scanning; the line
// budget in ScanLines bounds the cost of files with nothing in them.
type textDoc struct {
	env *Env
	doc ingest.RawDocument
	f   *os.File
}

func openText(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	return &textDoc{env: env, doc: doc, f: f}, nil
}

func (d *textDoc) Classify(context.Context, *classify.Classifier) (classify.Verdict, error) {
	return classify.Verdict{Kind: classify.Digitized, Reason: "line text"}, nil
}

func (d *textDoc) Extract(ctx context.Context) (extract.Result, error) {
	r, err := decodedReader(d.f, d.env.Charset)
	if err != nil {
		return extract.Result{}, err
	}
	set := extract.NewSet(d.doc.Name)
	st, err := d.env.Extractor.ScanLines(ctx, r, d.env.Windows.Line, set)
	if err != nil {
		return extract.Result{}, err
	}
	if st.Aborted {
		d.env.Logger.Info("sources.text.aborted", "name", d.doc.Name, "lines", st.Lines)
	}
	return set.Result(), nil
}

func (d *textDoc) Close() error { return d.f.Close() }
