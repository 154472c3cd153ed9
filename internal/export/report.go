// Package export renders run reports as XLSX workbooks.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
	"github.com/joseph-ayodele/contact-harvester/internal/pipeline"
)

const (
	SheetDocuments = "Documents"
	SheetSummary   = "Summary"
	SheetIndex     = "Index"
)

// WriteRunReport writes the workbook for an extraction summary and, when
// rep is non-nil, an indexing report to path.
func WriteRunReport(path string, s *pipeline.Summary, rep *index.Report, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	f, err := BuildRunReport(s, rep)
	if err != nil {
		return err
	}
	defer f.Close()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report dir: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("export.report.ok", "path", path, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// BuildRunReport returns the workbook without saving it. Either argument
// may be nil; its sheets are then left out.
func BuildRunReport(s *pipeline.Summary, rep *index.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	var sheets []string
	if s != nil {
		sheets = append(sheets, SheetDocuments)
	}
	sheets = append(sheets, SheetSummary)
	if rep != nil {
		sheets = append(sheets, SheetIndex)
	}

	// excelize starts with Sheet1; rename it rather than leave it empty
	if err := f.SetSheetName("Sheet1", sheets[0]); err != nil {
		return nil, err
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	if s != nil {
		writeDocuments(f, s)
	}
	writeSummary(f, s, rep)
	if rep != nil {
		writeIndex(f, rep)
	}
	return f, nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) line(vals ...any) {
	w.row++
	for i, v := range vals {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func writeDocuments(f *excelize.File, s *pipeline.Summary) {
	w := &sheetWriter{f: f, sheet: SheetDocuments}
	w.line("Name", "State", "Verdict", "Records", "Artifact", "Reason", "Error", "Duration (ms)")
	for _, o := range s.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = truncate(o.Err.Error(), 240)
		}
		w.line(o.Name, string(o.State), o.Verdict, o.Records, o.Artifact, o.Reason, errText, o.Duration.Milliseconds())
	}
	_ = f.SetColWidth(SheetDocuments, "A", "A", 36)
	_ = f.SetColWidth(SheetDocuments, "B", "C", 22)
	_ = f.SetColWidth(SheetDocuments, "E", "E", 48)
	_ = f.SetColWidth(SheetDocuments, "F", "G", 40)
}

func writeSummary(f *excelize.File, s *pipeline.Summary, rep *index.Report) {
	w := &sheetWriter{f: f, sheet: SheetSummary}
	w.line("Metric", "Value")
	if s != nil {
		w.line("documents", s.Total)
		for _, st := range constants.States {
			w.line(strings.ToLower(string(st)), s.Count(st))
		}
		w.line("records", s.Records)
	}
	if rep != nil {
		w.line("index run", rep.RunID)
		w.line("artifacts", rep.Files)
		w.line("records indexed", rep.Records)
		w.line("batches", rep.Batches)
		w.line("failed batches", len(rep.FailedBatches))
	}
	_ = f.SetColWidth(SheetSummary, "A", "A", 28)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
}

func writeIndex(f *excelize.File, rep *index.Report) {
	w := &sheetWriter{f: f, sheet: SheetIndex}
	w.line("Kind", "File", "Detail")
	for _, m := range rep.Malformed {
		w.line("malformed", m.Name, truncate(m.Reason, 240))
	}
	for _, sk := range rep.Skipped {
		w.line("skipped", sk.Name, sk.Reason)
	}
	for _, fb := range rep.FailedBatches {
		detail := fmt.Sprintf("batch %d, %d records", fb.Seq, fb.Records)
		if fb.Err != nil {
			detail += ": " + truncate(fb.Err.Error(), 200)
		}
		w.line("failed_batch", strings.Join(fb.Files, ", "), detail)
	}
	_ = f.SetColWidth(SheetIndex, "A", "A", 14)
	_ = f.SetColWidth(SheetIndex, "B", "B", 40)
	_ = f.SetColWidth(SheetIndex, "C", "C", 80)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
