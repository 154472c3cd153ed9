package classify

import (
	"strings"
)

// Finder reports whether text holds an address.
type Finder interface {
	Contains(s string) bool
}

// ProbeLines is how many rows or lines the probes look at.
const ProbeLines = 10

// HeaderHoldsAddress reports whether a would-be header row is really data.
func HeaderHoldsAddress(f Finder, header []string) bool {
	for _, h := range header {
		if f.Contains(h) {
			return true
		}
	}
	return false
}

// ProbeTable classifies a tabular source from its header and first rows.
func ProbeTable(f Finder, header []string, rows [][]string) Verdict {
	for _, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name", "email":
			return Verdict{Kind: Digitized, Reason: "contact header"}
		}
	}
	if HeaderHoldsAddress(f, header) {
		return Verdict{Kind: Digitized, Reason: "address in header row"}
	}
	for i, row := range rows {
		if i >= ProbeLines {
			break
		}
		for _, cell := range row {
			if f.Contains(cell) {
				return Verdict{Kind: Digitized, Reason: "address in leading rows"}
			}
		}
	}
	return Verdict{Kind: Scanned, Reason: "no contact signal"}
}

// ProbeMarkup classifies structured markup from its raw content.
func ProbeMarkup(f Finder, content string) Verdict {
	if strings.Contains(strings.ToLower(content), "email") {
		return Verdict{Kind: Digitized, Reason: "email keyword"}
	}
	lines := strings.SplitN(content, "\n", ProbeLines+1)
	if len(lines) > ProbeLines {
		lines = lines[:ProbeLines]
	}
	for _, l := range lines {
		if f.Contains(l) {
			return Verdict{Kind: Digitized, Reason: "address in leading lines"}
		}
	}
	return Verdict{Kind: Scanned, Reason: "no contact signal"}
}
