package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config tunes an Extractor.
type Config struct {
	Strict          bool // drop matches failing StrictValid
	PrecheckPages   int  // pages scanned before giving up on a paginated source
	AbortAfterLines int  // lines scanned before giving up on a line source
}

// Extractor finds addresses in text and attaches their context.
// It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PrecheckPages <= 0 {
		cfg.PrecheckPages = 30
	}
	if cfg.AbortAfterLines <= 0 {
		cfg.AbortAfterLines = 5000
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Match is an accepted address and its byte span.
type Match struct {
	Start, End int
	Address    string
}

func (x *Extractor) each(ctx context.Context, s string, fn func(m Match) bool) error {
	return scan(ctx, s, func(start, end int) bool {
		addr := s[start:end]
		if x.cfg.Strict && !StrictValid(addr) {
			return true
		}
		return fn(Match{Start: start, End: end, Address: addr})
	})
}

// FindAll returns every accepted match in s, leftmost first.
func (x *Extractor) FindAll(s string) []Match {
	var out []Match
	_ = x.each(context.Background(), s, func(m Match) bool {
		out = append(out, m)
		return true
	})
	return out
}

// First returns the first accepted address in s.
func (x *Extractor) First(s string) (string, bool) {
	var addr string
	_ = x.each(context.Background(), s, func(m Match) bool {
		addr = m.Address
		return false
	})
	return addr, addr != ""
}

// Contains reports whether s holds at least one accepted address.
func (x *Extractor) Contains(s string) bool {
	_, ok := x.First(s)
	return ok
}

// ScanText adds every match in s to set, with a context of w runes either
// side taken from s itself. It returns the number of new records.
func (x *Extractor) ScanText(s string, w int, set *Set) int {
	n, _ := x.ScanTextContext(context.Background(), s, w, set)
	return n
}

// ScanTextContext is ScanText for large in-memory texts. It gives up with
// ctx's error once ctx is done; records found so far stay in set.
func (x *Extractor) ScanTextContext(ctx context.Context, s string, w int, set *Set) (int, error) {
	added := 0
	err := x.each(ctx, s, func(m Match) bool {
		if set.Add(m.Address, window(s, m.Start, m.End, w)) {
			added++
		}
		return true
	})
	return added, err
}

// ScanLines reads r line by line and takes each context from within its
// own line. When no address has been accepted after AbortAfterLines lines
// the scan stops.
func (x *Extractor) ScanLines(ctx context.Context, r io.Reader, w int, set *Set) (LineStats, error) {
	var st LineStats
	br := bufio.NewReaderSize(r, 64<<10)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			st.Lines++
			line = strings.TrimRight(line, "\r\n")
			st.Matches += x.ScanText(line, w, set)

			if st.Matches == 0 && st.Lines >= x.cfg.AbortAfterLines {
				st.Aborted = true
				x.logger.Debug("extract.lines.aborted", "lines", st.Lines)
				return st, nil
			}
			if st.Lines%1024 == 0 {
				if cerr := ctx.Err(); cerr != nil {
					return st, cerr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read line %d: %w", st.Lines+1, err)
		}
	}
}

// ScanPages runs the presence pre-check over the first PrecheckPages pages
// and, on a hit, scans every page with a per-page context window.
// Pages read during the pre-check are not read again.
func (x *Extractor) ScanPages(ctx context.Context, src PageSource, w int, set *Set) (PageStats, error) {
	var st PageStats
	n, err := src.PageCount()
	if err != nil {
		return st, fmt.Errorf("page count: %w", err)
	}
	st.Pages = n

	cache := make(map[int]string)
	hit := false
	for i := 0; i < min(n, x.cfg.PrecheckPages); i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		text, err := src.PageText(i)
		if err != nil {
			return st, fmt.Errorf("page %d: %w", i+1, err)
		}
		cache[i] = text
		st.PagesRead++
		if x.Contains(text) {
			hit = true
			break
		}
	}
	if !hit {
		st.PrecheckMiss = true
		x.logger.Debug("extract.pages.precheck_miss", "pages", n, "checked", st.PagesRead)
		return st, nil
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		text, ok := cache[i]
		if !ok {
			text, err = src.PageText(i)
			if err != nil {
				return st, fmt.Errorf("page %d: %w", i+1, err)
			}
			st.PagesRead++
		}
		delete(cache, i)
		added, err := x.ScanTextContext(ctx, text, w, set)
		st.Matches += added
		if err != nil {
			return st, err
		}
	}
	return st, nil
}
