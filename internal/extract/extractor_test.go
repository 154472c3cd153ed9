package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"testing"
)

func newTestExtractor(strict bool) *Extractor {
	return New(Config{Strict: strict, PrecheckPages: 2, AbortAfterLines: 3}, nil)
}

func TestScanTextContexts(t *testing.T) {
	x := newTestExtractor(true)
	set := NewSet("memo.txt")

	n := x.ScanText("reach me at Alice@Example.COM, cc bob@x.io", 10, set)
	if n != 2 {
		t.Fatalf("ScanText() added = %d, want 2", n)
	}

	res := set.Result()
	want := []struct{ addr, ctx string }{
		{"Alice@Example.COM", "ach me at Alice@Example.COM, cc bob@x"},
		{"bob@x.io", "e.COM, cc bob@x.io"},
	}
	for i, w := range want {
		got := res.Records[i]
		if got.Address != w.addr {
			t.Errorf("record %d address = %q, want %q", i, got.Address, w.addr)
		}
		if got.Context != w.ctx {
			t.Errorf("record %d context = %q, want %q", i, got.Context, w.ctx)
		}
		if got.Source != "memo.txt" {
			t.Errorf("record %d source = %q, want memo.txt", i, got.Source)
		}
		if got.Fingerprint != Fingerprint(Fold(w.addr), w.ctx) {
			t.Errorf("record %d fingerprint mismatch", i)
		}
	}
}

func TestFindAllGrammar(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		strict bool
		want   []string
	}{
		{"plain", "write to jane@site.org today", true, []string{"jane@site.org"}},
		{"trailing dot", "mail john@doe.com.", true, []string{"john@doe.com"}},
		{"mailto", "<a href=mailto:jane@site.org>", true, []string{"jane@site.org"}},
		{"dotted local", "first.last+tag@sub.example.co.uk", true, []string{"first.last+tag@sub.example.co.uk"}},
		{"quoted lenient", `"john doe"@example.com`, false, []string{`"john doe"@example.com`}},
		{"quoted strict", `"john doe"@example.com`, true, nil},
		{"literal lenient", "user@[192.168.0.1]", false, []string{"user@[192.168.0.1]"}},
		{"literal strict", "user@[192.168.0.1]", true, nil},
		{"single label lenient", "root@localhost", false, []string{"root@localhost"}},
		{"single label strict", "root@localhost", true, nil},
		{"no at", "nothing to see here.", true, nil},
		{"non-ascii breaks local part", "josé@example.com", true, nil},
		{"two in a row", "a@b.io,c@d.io", true, []string{"a@b.io", "c@d.io"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newTestExtractor(tt.strict)
			var got []string
			for _, m := range x.FindAll(tt.in) {
				got = append(got, m.Address)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("FindAll(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetFirstOccurrenceWins(t *testing.T) {
	x := newTestExtractor(true)
	set := NewSet("doc")
	x.ScanText("first A@x.io here", 4, set)
	x.ScanText("then a@X.IO again", 4, set)

	if set.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", set.Len())
	}
	got := set.Result().Records[0]
	if got.Address != "A@x.io" {
		t.Errorf("address = %q, want A@x.io", got.Address)
	}
	if !strings.HasPrefix(got.Context, "rst") {
		t.Errorf("context = %q, want first occurrence", got.Context)
	}
}

func TestWindowIsRuneSafe(t *testing.T) {
	s := "héllo a@b.co wörld"
	x := newTestExtractor(true)
	set := NewSet("doc")
	x.ScanText(s, 3, set)
	if got, want := set.Result().Records[0].Context, "lo a@b.co wö"; got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

func TestNormalizeContext(t *testing.T) {
	got := NormalizeContext("\t a\r\nb\rc\nd\t ")
	if want := "a b c d"; got != want {
		t.Errorf("NormalizeContext() = %q, want %q", got, want)
	}
}

func TestScanLinesAbort(t *testing.T) {
	x := newTestExtractor(true)

	set := NewSet("log")
	in := "one\ntwo\nthree\nfour\nlate@x.io\n"
	st, err := x.ScanLines(context.Background(), strings.NewReader(in), 150, set)
	if err != nil {
		t.Fatalf("ScanLines() error = %v", err)
	}
	if !st.Aborted || st.Lines != 3 {
		t.Errorf("stats = %+v, want aborted after 3 lines", st)
	}
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}

	set = NewSet("log")
	in = "one\ntwo\nhit@x.io\r\nfour\nfive\nsix"
	st, err = x.ScanLines(context.Background(), strings.NewReader(in), 150, set)
	if err != nil {
		t.Fatalf("ScanLines() error = %v", err)
	}
	if st.Aborted || st.Lines != 6 || st.Matches != 1 {
		t.Errorf("stats = %+v, want 6 lines, 1 match, no abort", st)
	}
	if got := set.Result().Records[0].Context; got != "hit@x.io" {
		t.Errorf("context = %q, want line-local context", got)
	}
}

type fakePages struct {
	pages []string
	reads map[int]int
}

func (f *fakePages) PageCount() (int, error) { return len(f.pages), nil }

func (f *fakePages) PageText(i int) (string, error) {
	f.reads[i]++
	return f.pages[i], nil
}

func TestScanPagesPrecheckMiss(t *testing.T) {
	x := newTestExtractor(true)
	src := &fakePages{pages: []string{"a", "b", "late@x.io"}, reads: map[int]int{}}

	st, err := x.ScanPages(context.Background(), src, 500, NewSet("p.pdf"))
	if err != nil {
		t.Fatalf("ScanPages() error = %v", err)
	}
	if !st.PrecheckMiss || st.PagesRead != 2 || st.Matches != 0 {
		t.Errorf("stats = %+v, want precheck miss after 2 pages", st)
	}
}

func TestScanPagesReadsEachPageOnce(t *testing.T) {
	x := newTestExtractor(true)
	src := &fakePages{
		pages: []string{"intro", "contact ann@x.io", "nothing", "also bo@y.org"},
		reads: map[int]int{},
	}
	set := NewSet("p.pdf")

	st, err := x.ScanPages(context.Background(), src, 500, set)
	if err != nil {
		t.Fatalf("ScanPages() error = %v", err)
	}
	if st.PrecheckMiss || st.Pages != 4 || st.PagesRead != 4 || st.Matches != 2 {
		t.Errorf("stats = %+v", st)
	}
	for i, n := range src.reads {
		if n != 1 {
			t.Errorf("page %d read %d times, want 1", i, n)
		}
	}
	if got := set.Result().Records[1].Context; got != "also bo@y.org" {
		t.Errorf("context = %q, want page-local context", got)
	}
}

func TestRowsFrom(t *testing.T) {
	x := newTestExtractor(true)
	header := []string{"name", "email", "", "name"}
	rows := [][]string{
		{"Ann", "ann@x.io", "line1\nline2", "dup"},
		{"Nobody", "", "", ""},
		{"Ann again", "ann@x.io", "", ""},
	}

	res := x.RowsFrom(header, rows)
	if res.Shape != ShapeRows || res.Len() != 2 {
		t.Fatalf("RowsFrom() = %+v, want 2 rows", res)
	}
	r := res.Rows[0]
	if r.Address != "ann@x.io" {
		t.Errorf("address = %q, want ann@x.io", r.Address)
	}
	want := map[string]string{"name": "Ann", "column_3": "line1 line2", "name_2": "dup"}
	if fmt.Sprint(r.Context) != fmt.Sprint(want) {
		t.Errorf("context = %v, want %v", r.Context, want)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("ann@x.io", "ctx")
	if a != Fingerprint("ann@x.io", "ctx") {
		t.Error("Fingerprint() not deterministic")
	}
	if a == Fingerprint("ann@x.io", "other") {
		t.Error("Fingerprint() ignores context")
	}
	if len(a) != 40 {
		t.Errorf("len = %d, want 40", len(a))
	}
	if Fold("Ann@X.IO") != "ann@x.io" {
		t.Errorf("Fold() = %q", Fold("Ann@X.IO"))
	}
}

func TestStrictValid(t *testing.T) {
	tests := map[string]bool{
		"a@b.co":         true,
		"a.b%c+d-e@x.io": true,
		"a@b.c":          false,
		"a@b.c0":         false,
		"@b.co":          false,
		"a@.co":          false,
		"a@b":            false,
		"a!b@c.co":       false,
	}
	for in, want := range tests {
		if got := StrictValid(in); got != want {
			t.Errorf("StrictValid(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMatchAtSkipsDottedRuns(t *testing.T) {
	tests := []struct {
		in   string
		skip int
	}{
		{"a.b.c.d x@y", 7},
		{"aa.bb.", 5},
		{"a.b@", 3},
		{`a.b."q" z`, 4},
		{`"q".a z`, 1},
	}
	for _, tt := range tests {
		end, skip := matchAt(tt.in, 0)
		if end != -1 || skip != tt.skip {
			t.Errorf("matchAt(%q) = (%d, %d), want (-1, %d)", tt.in, end, skip, tt.skip)
		}
	}
}

func TestFindAllAfterFailedRuns(t *testing.T) {
	x := newTestExtractor(false)
	tests := []struct {
		in   string
		want []string
	}{
		{"x.y.z a.b@c.io", []string{"a.b@c.io"}},
		{`n.m."b c"@x.io`, []string{`n.m."b c"@x.io`}},
		{`a.b."q"x j@k.io`, []string{"j@k.io"}},
		{"v.w@ u.v@w.io", []string{"u.v@w.io"}},
	}
	for _, tt := range tests {
		var got []string
		for _, m := range x.FindAll(tt.in) {
			got = append(got, m.Address)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("FindAll(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScanTextLinearOnDottedRuns(t *testing.T) {
	x := newTestExtractor(false)
	s := strings.Repeat("a.", 1<<20) + " tail@x.io"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	set := NewSet("dots.txt")
	n, err := x.ScanTextContext(ctx, s, 5, set)
	if err != nil {
		t.Fatalf("ScanTextContext() error = %v", err)
	}
	if n != 1 || set.Result().Records[0].Address != "tail@x.io" {
		t.Errorf("ScanTextContext() added %d records", n)
	}
}

func TestScanTextContextCanceled(t *testing.T) {
	x := newTestExtractor(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := strings.Repeat("word ", scanPollBytes) + "late@x.io"
	set := NewSet("big.txt")
	if _, err := x.ScanTextContext(ctx, s, 5, set); err != context.Canceled {
		t.Fatalf("ScanTextContext() error = %v, want context.Canceled", err)
	}
	if len(set.Result().Records) != 0 {
		t.Error("records added after cancellation")
	}
}
