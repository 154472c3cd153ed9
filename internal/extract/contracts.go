package extract

// PageSource exposes a paginated document one page at a time.
type PageSource interface {
	PageCount() (int, error)
	// PageText returns the text of page i (0-indexed).
	PageText(i int) (string, error)
}

// LineStats reports what a line scan did.
type LineStats struct {
	Lines   int  // lines read, including the one that triggered an abort
	Matches int  // addresses accepted into the set
	Aborted bool // stopped early: no match within the line budget
}

// PageStats reports what a page scan did.
type PageStats struct {
	Pages        int  // pages in the document
	PagesRead    int  // distinct pages whose text was pulled
	Matches      int  // addresses accepted into the set
	PrecheckMiss bool // abandoned after the presence pre-check
}
