package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// htmlDoc holds a page's visible text as lines, plus any mailto targets,
// which often never appear in the visible text at all.
type htmlDoc struct {
	env   *Env
	doc   ingest.RawDocument
	lines []string
}

func openHTML(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decodedReader(f, env.Charset)
	if err != nil {
		return nil, err
	}
	page, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &htmlDoc{env: env, doc: doc, lines: htmlLines(page)}, nil
}

func htmlLines(page *goquery.Document) []string {
	page.Find("script,style,noscript,template").Remove()
	// block boundaries would otherwise glue neighbouring words together
	page.Find("br,p,div,li,tr,td,th,h1,h2,h3,h4,h5,h6,section,article,header,footer").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, l := range strings.Split(page.Text(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	page.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if target, ok := mailtoTarget(href); ok {
			lines = append(lines, target)
		}
	})
	return lines
}

// mailtoTarget returns the address part of a mailto link. The scheme is
// matched case-insensitively.
func mailtoTarget(href string) (string, bool) {
	const scheme = "mailto:"
	href = strings.TrimSpace(href)
	if len(href) < len(scheme) || !strings.EqualFold(href[:len(scheme)], scheme) {
		return "", false
	}
	target, _, _ := strings.Cut(href[len(scheme):], "?")
	target = strings.TrimSpace(target)
	return target, target != ""
}

func (d *htmlDoc) Classify(_ context.Context, c *classify.Classifier) (classify.Verdict, error) {
	return c.Classify(classify.NewSliceSource(d.lines...))
}

func (d *htmlDoc) Extract(ctx context.Context) (extract.Result, error) {
	set := extract.NewSet(d.doc.Name)
	if _, err := d.env.Extractor.ScanTextContext(ctx, strings.Join(d.lines, "\n"), d.env.Windows.Markup, set); err != nil {
		return extract.Result{}, err
	}
	return set.Result(), nil
}

func (d *htmlDoc) Close() error { return nil }
