package sources

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lookupCharset resolves an IANA charset name, defaulting to UTF-8.
func lookupCharset(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return unicode.UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: not supported", name)
	}
	return enc, nil
}

// decodedReader turns r into UTF-8. A byte order mark wins over the
// fallback charset; invalid sequences become U+FFFD.
func decodedReader(r io.Reader, fallback string) (io.Reader, error) {
	enc, err := lookupCharset(fallback)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// readDecoded loads a whole file as UTF-8.
func readDecoded(path, fallback string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := decodedReader(f, fallback)
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(b), nil
}
