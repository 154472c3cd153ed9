package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contact-harvester/constants"
)

// Supported checks if a file extension maps to a known source kind.
func Supported(ext string) bool {
	_, ok := constants.Extensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
