package classify

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Kind is the classifier's decision for one document.
type Kind int

const (
	Digitized  Kind = iota // carries a usable text layer
	Scanned                // image-only, empty or no signal
	Redirected             // routed away on name alone
)

func (k Kind) String() string {
	switch k {
	case Digitized:
		return "DIGITIZED"
	case Scanned:
		return "SCANNED"
	case Redirected:
		return "REDIRECTED"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Verdict struct {
	Kind   Kind
	Reason string
}

// ChunkSource yields a document's text in bounded pieces (pages,
// paragraphs, slides or lines). NextChunk returns io.EOF when exhausted.
type ChunkSource interface {
	NextChunk() (string, error)
}

// Classifier decides whether a document has enough embedded text to be
// worth extracting from.
type Classifier struct {
	Threshold int      // runes of trimmed text required, strictly exceeded
	Require   []string // name keywords that must all appear for a redirect
	Any       []string // at least one of these must also appear
}

func New(threshold int, require, anyOf []string) *Classifier {
	return &Classifier{Threshold: threshold, Require: require, Any: anyOf}
}

// Override applies the filename rule before any content is read.
func (c *Classifier) Override(name string) (Verdict, bool) {
	if len(c.Require) == 0 && len(c.Any) == 0 {
		return Verdict{}, false
	}
	lower := strings.ToLower(name)
	for _, kw := range c.Require {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return Verdict{}, false
		}
	}
	if len(c.Any) > 0 {
		hit := false
		for _, kw := range c.Any {
			if strings.Contains(lower, strings.ToLower(kw)) {
				hit = true
				break
			}
		}
		if !hit {
			return Verdict{}, false
		}
	}
	return Verdict{Kind: Redirected, Reason: "identity-document keywords"}, true
}

// Classify pulls chunks until the accumulated text clears the threshold.
// It stops reading as soon as the answer is known.
func (c *Classifier) Classify(src ChunkSource) (Verdict, error) {
	var acc strings.Builder
	chunks := 0
	for {
		chunk, err := src.NextChunk()
		if errors.Is(err, io.EOF) {
			return Verdict{Kind: Scanned, Reason: fmt.Sprintf("%d chunks under threshold", chunks)}, nil
		}
		if err != nil {
			return Verdict{}, err
		}
		chunks++
		acc.WriteString(chunk)
		if c.exceeds(acc.String()) {
			return Verdict{Kind: Digitized, Reason: fmt.Sprintf("text layer after %d chunks", chunks)}, nil
		}
	}
}

func (c *Classifier) exceeds(s string) bool {
	s = strings.TrimSpace(s)
	// cheap upper bound before counting runes
	if len(s) <= c.Threshold {
		return false
	}
	return utf8.RuneCountInString(s) > c.Threshold
}

// SliceSource serves chunks from memory.
type SliceSource struct {
	chunks []string
	next   int
}

func NewSliceSource(chunks ...string) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) NextChunk() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	s.next++
	return s.chunks[s.next-1], nil
}

// FuncSource adapts a function to ChunkSource.
type FuncSource func() (string, error)

func (f FuncSource) NextChunk() (string, error) { return f() }
