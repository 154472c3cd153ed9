package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contact-harvester/constants"
)

// RawDocument is one staged file awaiting routing.
type RawDocument struct {
	Path string
	Name string // base name
	Ext  string // normalized, no dot
	Size int64
}

// Stem is the name without its extension.
func (d RawDocument) Stem() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// NewRawDocument stats path and describes it.
func NewRawDocument(path string) (RawDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return RawDocument{}, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return RawDocument{}, err
	}
	if fi.IsDir() {
		return RawDocument{}, fmt.Errorf("%s is a directory", abs)
	}
	return RawDocument{
		Path: abs,
		Name: fi.Name(),
		Ext:  constants.NormalizeExt(filepath.Ext(abs)),
		Size: fi.Size(),
	}, nil
}

// FingerprintFile returns the hex sha256 of the file's bytes.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
