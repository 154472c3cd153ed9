package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// Stager moves documents out of the source dir once they are settled.
type Stager struct {
	cfg common.StagingConfig
}

func NewStager(cfg common.StagingConfig) *Stager { return &Stager{cfg: cfg} }

// Remove deletes a consumed document.
func (s *Stager) Remove(doc ingest.RawDocument) error {
	if err := os.Remove(doc.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Stager) ToScanned(doc ingest.RawDocument) (string, error) {
	return moveInto(s.cfg.ScannedDir, doc)
}

func (s *Stager) ToRedirect(doc ingest.RawDocument) (string, error) {
	return moveInto(s.cfg.RedirectDir, doc)
}

// Fail parks a document that could not be processed, or deletes it when
// no failed dir is configured.
func (s *Stager) Fail(doc ingest.RawDocument) error {
	if s.cfg.FailedDir == "" {
		return s.Remove(doc)
	}
	_, err := moveInto(s.cfg.FailedDir, doc)
	return err
}

// moveInto moves doc into dir without overwriting anything already there.
// Names are claimed with a hard link, or an exclusive create when the dir
// is on another device, so concurrent movers never collide.
func moveInto(dir string, doc ingest.RawDocument) (string, error) {
	if dir == "" {
		return "", errors.New("staging dir not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(doc.Name)
	stem := strings.TrimSuffix(doc.Name, ext)
	for n := 0; n < 1000; n++ {
		name := doc.Name
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		dst := filepath.Join(dir, name)

		err := os.Link(doc.Path, dst)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			err = copyFile(doc.Path, dst)
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return dst, os.Remove(doc.Path)
	}
	return "", fmt.Errorf("no free name for %s in %s", doc.Name, dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
