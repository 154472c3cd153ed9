package sources

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// csvDoc streams rows. Rows read by the probe are buffered and replayed
// to the extractor.
type csvDoc struct {
	env    *Env
	doc    ingest.RawDocument
	f      *os.File
	r      *csv.Reader
	header []string
	head   [][]string
	primed bool
}

func openCSV(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	dec, err := decodedReader(f, env.Charset)
	if err != nil {
		f.Close()
		return nil, err
	}
	br := bufio.NewReader(dec)
	r := csv.NewReader(br)
	r.Comma = sniffComma(br)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return &csvDoc{env: env, doc: doc, f: f, r: r}, nil
}

// sniffComma picks ';' or tab when the first line uses it and no commas.
func sniffComma(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	line, _, _ := strings.Cut(string(peek), "\n")
	if strings.Contains(line, ",") {
		return ','
	}
	for _, c := range []rune{';', '\t'} {
		if strings.ContainsRune(line, c) {
			return c
		}
	}
	return ','
}

func (d *csvDoc) next() ([]string, error) {
	rec, err := d.r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		// csv.ParseError already names the line
		return nil, fmt.Errorf("csv: %w", err)
	}
	return rec, err
}

// prime reads the header and the probe rows.
func (d *csvDoc) prime() error {
	if d.primed {
		return nil
	}
	d.primed = true
	h, err := d.next()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if classify.HeaderHoldsAddress(d.env.Extractor, h) {
		// headerless file: the first line is already a contact
		d.head = append(d.head, h)
	} else {
		d.header = h
	}
	for len(d.head) < classify.ProbeLines {
		rec, err := d.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		d.head = append(d.head, rec)
	}
	return nil
}

func (d *csvDoc) Classify(_ context.Context, _ *classify.Classifier) (classify.Verdict, error) {
	if err := d.prime(); err != nil {
		return classify.Verdict{}, err
	}
	return classify.ProbeTable(d.env.Extractor, d.header, d.head), nil
}

func (d *csvDoc) Extract(ctx context.Context) (extract.Result, error) {
	if err := d.prime(); err != nil {
		return extract.Result{}, err
	}
	x := d.env.Extractor
	res := x.RowsFrom(d.header, d.head)
	d.head = nil
	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return extract.Result{}, err
			}
		}
		rec, err := d.next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return extract.Result{}, err
		}
		if row, ok := x.Row(d.header, rec); ok {
			res.Rows = append(res.Rows, row)
		}
	}
}

func (d *csvDoc) Close() error { return d.f.Close() }
