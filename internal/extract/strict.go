package extract

import "strings"

// StrictValid reports whether addr has the conventional shape
// local@host.tld: local and host drawn from letters, digits and a few
// punctuation marks, and a final label of at least two letters.
func StrictValid(addr string) bool {
	at := strings.IndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return false
	}
	local, domain := addr[:at], addr[at+1:]
	for i := 0; i < len(local); i++ {
		c := local[i]
		if !isAlnum(c) && strings.IndexByte("._%+-", c) < 0 {
			return false
		}
	}

	dot := strings.LastIndexByte(domain, '.')
	if dot < 1 {
		return false
	}
	tld := domain[dot+1:]
	if len(tld) < 2 {
		return false
	}
	for i := 0; i < len(tld); i++ {
		if !isAlpha(tld[i]) {
			return false
		}
	}
	for i := 0; i < dot; i++ {
		c := domain[i]
		if !isAlnum(c) && c != '.' && c != '-' {
			return false
		}
	}
	return true
}

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isAlnum(c byte) bool { return isAlpha(c) || c >= '0' && c <= '9' }
