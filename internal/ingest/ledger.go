package ingest

import "sync"

// Ledger remembers content fingerprints for the lifetime of a run.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// CheckAndInsert records fp and reports whether it was new. Of any number
// of concurrent callers with the same fp exactly one sees true.
func (l *Ledger) CheckAndInsert(fp string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[fp]; ok {
		return false
	}
	l.seen[fp] = struct{}{}
	return true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
