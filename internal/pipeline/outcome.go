package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/contact-harvester/constants"
)

// Outcome is the terminal record of one document's traversal.
type Outcome struct {
	Path        string
	Name        string
	State       constants.DocState
	Verdict     string
	Reason      string
	Err         error
	Artifact    string
	Records     int
	Fingerprint string
	Duration    time.Duration
}

// FileIssue names a document that produced nothing, and why.
type FileIssue struct {
	Name   string
	Reason string
}

// Summary aggregates the outcomes of a run.
type Summary struct {
	Counts   map[constants.DocState]int
	Total    int
	Records  int
	Errors   []FileIssue // DiscardFailed
	Skipped  []FileIssue // discarded without error
	Outcomes []Outcome   // sorted by path
}

// Count returns the number of documents that ended in s.
func (s Summary) Count(state constants.DocState) int { return s.Counts[state] }

// Collector gathers outcomes from concurrent workers.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *Collector) Add(o Outcome) {
	c.mu.Lock()
	c.outcomes = append(c.outcomes, o)
	c.mu.Unlock()
}

// Summary builds a summary of everything collected so far.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	outs := append([]Outcome(nil), c.outcomes...)
	c.mu.Unlock()
	return Summarize(outs)
}

func Summarize(outs []Outcome) Summary {
	sort.SliceStable(outs, func(i, j int) bool { return outs[i].Path < outs[j].Path })
	s := Summary{Counts: make(map[constants.DocState]int), Outcomes: outs}
	for _, o := range outs {
		s.Total++
		s.Counts[o.State]++
		s.Records += o.Records
		switch {
		case o.State == constants.StateDiscardFailed:
			s.Errors = append(s.Errors, FileIssue{Name: o.Name, Reason: o.Reason})
		case o.State.IsDiscard():
			s.Skipped = append(s.Skipped, FileIssue{Name: o.Name, Reason: o.Reason})
		}
	}
	return s
}
