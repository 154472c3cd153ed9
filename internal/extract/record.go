package extract

import (
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/text/cases"
)

// ContactRecord is one address found in a document.
type ContactRecord struct {
	Address     string // as found
	Context     string
	Fingerprint string
	Source      string
}

// Row is one tabular record: the address plus every other column.
type Row struct {
	Address string
	Context map[string]string
}

// Shape selects the artifact layout a result is emitted in.
type Shape int

const (
	ShapeObject Shape = iota // address -> record, whole document is the unit
	ShapeRows                // one entry per row
)

func (s Shape) String() string {
	if s == ShapeRows {
		return "rows"
	}
	return "object"
}

// Result is the extraction output for one document.
type Result struct {
	Shape   Shape
	Records []ContactRecord
	Rows    []Row
}

// Len returns the number of records in whichever shape is populated.
func (r Result) Len() int {
	if r.Shape == ShapeRows {
		return len(r.Rows)
	}
	return len(r.Records)
}

// Empty reports whether nothing was extracted.
func (r Result) Empty() bool { return r.Len() == 0 }

// Fold case-folds an address for comparison and indexing.
func Fold(addr string) string {
	// Casers are stateful; one per call keeps Fold safe across goroutines.
	return cases.Fold().String(addr)
}

// Fingerprint is the record id: sha1 over the folded address followed by
// the context. Callers pass an already folded address.
func Fingerprint(foldedAddr, context string) string {
	h := sha1.New()
	h.Write([]byte(foldedAddr))
	h.Write([]byte(context))
	return hex.EncodeToString(h.Sum(nil))
}

// Set collects ContactRecords for one document, keeping the first
// occurrence of each folded address.
type Set struct {
	source  string
	seen    map[string]struct{}
	records []ContactRecord
}

func NewSet(source string) *Set {
	return &Set{source: source, seen: make(map[string]struct{})}
}

// Add records addr with its context unless the address was already seen.
func (s *Set) Add(addr, context string) bool {
	key := Fold(addr)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.records = append(s.records, ContactRecord{
		Address:     addr,
		Context:     context,
		Fingerprint: Fingerprint(key, context),
		Source:      s.source,
	})
	return true
}

func (s *Set) Len() int { return len(s.records) }

// Result returns the collected records in discovery order.
func (s *Set) Result() Result {
	return Result{Shape: ShapeObject, Records: s.records}
}
