package extract

import "context"

// The address grammar, byte oriented:
//
//	address := word ("." word)* "@" label ("." label)*
//	word    := atom | quoted
//	label   := atom | literal
//	atom    := 1*<0x21..0x7e except `"(),.:;<>@[\]|`>
//	quoted  := `"` *(<0x00..0x7f except CR LF `"` `\`> | `\` <0x00..0x7f>) `"`
//	literal := `[` *(<0x00..0x7f except CR LF `[` `]` `\`> | `\` <0x00..0x7f>) `]`
//
// Non-ASCII bytes never appear in a match. Quoted strings and literals are
// capped at maxDelimited bytes so an unbalanced quote cannot drag a match
// across a whole page.

const maxDelimited = 256

var atomTable = func() (t [256]bool) {
	for b := 0x21; b < 0x7f; b++ {
		t[b] = true
	}
	for _, c := range []byte(`"(),.:;<>@[\]|`) {
		t[c] = false
	}
	return t
}()

func isAtom(c byte) bool { return atomTable[c] }

// scanAtom returns the end of the atom starting at i, or i when there is none.
func scanAtom(s string, i int) int {
	j := i
	for j < len(s) && isAtom(s[j]) {
		j++
	}
	return j
}

// scanDelimited scans a quoted string or bracket literal whose opening
// delimiter sits at s[i]. It returns the index past the closer, or -1.
func scanDelimited(s string, i int, open, close byte) int {
	if i >= len(s) || s[i] != open {
		return -1
	}
	limit := min(len(s), i+maxDelimited)
	for j := i + 1; j < limit; {
		c := s[j]
		switch {
		case c == close:
			return j + 1
		case c == '\\':
			if j+1 < len(s) && s[j+1] < 0x80 {
				j += 2
				continue
			}
			return -1
		case c == '\r' || c == '\n' || c >= 0x80:
			return -1
		case open == '[' && c == '[':
			return -1
		default:
			j++
		}
	}
	return -1
}

// scanWord matches one local-part word at i. ok is false when nothing matched.
func scanWord(s string, i int) (end int, ok bool) {
	if i >= len(s) {
		return i, false
	}
	if s[i] == '"' {
		if e := scanDelimited(s, i, '"', '"'); e > 0 {
			return e, true
		}
		return i, false
	}
	e := scanAtom(s, i)
	return e, e > i
}

// scanLabel matches one domain label at i.
func scanLabel(s string, i int) (end int, ok bool) {
	if i >= len(s) {
		return i, false
	}
	if s[i] == '[' {
		if e := scanDelimited(s, i, '[', ']'); e > 0 {
			return e, true
		}
		return i, false
	}
	e := scanAtom(s, i)
	return e, e > i
}

// matchAt tries to match an address starting exactly at i. It returns the
// match end, or -1 together with how far the caller may safely skip.
func matchAt(s string, i int) (end, skip int) {
	j, ok := scanWord(s, i)
	if !ok {
		return -1, 1
	}
	if s[i] == '"' {
		skip = 1
	}

	// While the local part is a run of atoms, any start inside the run
	// parses to the same chain end, so a failure here fails from there too.
	for j < len(s) && s[j] == '.' {
		if skip == 0 && j+1 < len(s) && s[j+1] == '"' {
			skip = j + 1 - i
		}
		k, ok := scanWord(s, j+1)
		if !ok {
			break
		}
		j = k
	}
	if skip == 0 {
		skip = j - i
	}
	if j >= len(s) || s[j] != '@' {
		return -1, skip
	}

	j, ok = scanLabel(s, j+1)
	if !ok {
		return -1, skip
	}
	for j < len(s) && s[j] == '.' {
		k, ok := scanLabel(s, j+1)
		if !ok {
			break
		}
		j = k
	}
	return j, skip
}

// scanPollBytes is how much input scan consumes between context checks.
const scanPollBytes = 64 << 10

// scan calls fn for every non-overlapping match in s, leftmost first,
// until fn returns false. It stops early with ctx's error once ctx is done.
func scan(ctx context.Context, s string, fn func(start, end int) bool) error {
	poll := scanPollBytes
	for i := 0; i < len(s); {
		if i >= poll {
			if err := ctx.Err(); err != nil {
				return err
			}
			poll = i + scanPollBytes
		}
		c := s[i]
		if !isAtom(c) && c != '"' {
			i++
			continue
		}
		end, skip := matchAt(s, i)
		if end < 0 {
			i += skip
			continue
		}
		if !fn(i, end) {
			return nil
		}
		i = end
	}
	return nil
}
