package extract

import (
	"strings"
	"unicode/utf8"
)

var breaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ")

// NormalizeContext turns line breaks and tabs into single spaces and trims
// the result.
func NormalizeContext(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(breaks.Replace(s))
}

// window returns up to w runes either side of s[start:end], normalized.
func window(s string, start, end, w int) string {
	lo := start
	for n := 0; n < w && lo > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:lo])
		lo -= size
	}
	hi := end
	for n := 0; n < w && hi < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[hi:])
		hi += size
	}
	return NormalizeContext(s[lo:hi])
}
