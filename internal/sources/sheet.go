package sources

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// sheetDoc reads every worksheet of a workbook. Each sheet's first
// non-empty row is its header.
type sheetDoc struct {
	env *Env
	doc ingest.RawDocument
	f   *excelize.File
}

func openSheet(_ context.Context, env *Env, doc ingest.RawDocument) (Document, error) {
	f, err := excelize.OpenFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &sheetDoc{env: env, doc: doc, f: f}, nil
}

// eachRow calls fn with every row after the header, across all sheets,
// until fn returns false.
func (d *sheetDoc) eachRow(fn func(header, row []string) bool) error {
	for _, sheet := range d.f.GetSheetList() {
		rows, err := d.f.Rows(sheet)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sheet, err)
		}
		var header []string
		more := true
		for more && rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				rows.Close()
				return fmt.Errorf("sheet %q: %w", sheet, err)
			}
			if header == nil {
				if blank(cols) {
					continue
				}
				if header = d.header(cols); header != nil {
					continue
				}
				header = []string{}
			}
			more = fn(header, cols)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// header returns cols when they can serve as a header, or nil when the
// first row already holds a contact and the sheet has no header at all.
func (d *sheetDoc) header(cols []string) []string {
	if classify.HeaderHoldsAddress(d.env.Extractor, cols) {
		return nil
	}
	return cols
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// Classify probes the leading rows of each sheet and stops at the first
// sheet that shows a contact signal.
func (d *sheetDoc) Classify(_ context.Context, _ *classify.Classifier) (classify.Verdict, error) {
	for _, sheet := range d.f.GetSheetList() {
		header, head, err := d.headRows(sheet)
		if err != nil {
			return classify.Verdict{}, err
		}
		if header == nil {
			continue
		}
		if v := classify.ProbeTable(d.env.Extractor, header, head); v.Kind == classify.Digitized {
			return v, nil
		}
	}
	return classify.Verdict{Kind: classify.Scanned, Reason: "no contact signal"}, nil
}

// headRows returns a sheet's header and up to ProbeLines rows after it.
func (d *sheetDoc) headRows(sheet string) (header []string, head [][]string, err error) {
	rows, err := d.f.Rows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	defer rows.Close()
	for len(head) < classify.ProbeLines && rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		if header == nil {
			if blank(cols) {
				continue
			}
			if header = d.header(cols); header != nil {
				continue
			}
			header = []string{}
		}
		head = append(head, cols)
	}
	return header, head, nil
}

func (d *sheetDoc) Extract(ctx context.Context) (extract.Result, error) {
	x := d.env.Extractor
	res := extract.Result{Shape: extract.ShapeRows}
	var ctxErr error
	err := d.eachRow(func(header, cells []string) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		if row, ok := x.Row(header, cells); ok {
			res.Rows = append(res.Rows, row)
		}
		return true
	})
	if err != nil {
		return extract.Result{}, err
	}
	if ctxErr != nil {
		return extract.Result{}, ctxErr
	}
	return res, nil
}

func (d *sheetDoc) Close() error { return d.f.Close() }
