package convert

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

type stubRunner struct {
	write bool
	block bool
	err   error
	args  []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.args = append([]string{name}, args...)
	if s.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if s.write {
		outDir := args[len(args)-2]
		in := args[len(args)-1]
		base := filepath.Base(in)
		base = base[:len(base)-len(filepath.Ext(base))]
		if err := os.WriteFile(filepath.Join(outDir, base+".docx"), []byte("PK"), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, []byte("stderr"), s.err
}

func TestConvertSuccess(t *testing.T) {
	dir := t.TempDir()
	r := &stubRunner{write: true}
	c := NewWithRunner(Config{}, r, nil)

	out, err := c.Convert(context.Background(), "/in/Letter.DOC", dir)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if want := filepath.Join(dir, "Letter.docx"); out != want {
		t.Errorf("Convert() = %q, want %q", out, want)
	}
	want := []string{"libreoffice", "--headless", "--convert-to", "docx", "--outdir", dir, "/in/Letter.DOC"}
	if len(r.args) != len(want) {
		t.Fatalf("args = %v, want %v", r.args, want)
	}
	for i := range want {
		if r.args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, r.args[i], want[i])
		}
	}
}

func TestConvertMissingOutput(t *testing.T) {
	c := NewWithRunner(Config{}, &stubRunner{}, nil)
	_, err := c.Convert(context.Background(), "/in/notes.rtf", t.TempDir())
	if !errors.Is(err, common.ErrToolNoOutput) {
		t.Errorf("Convert() error = %v, want ErrToolNoOutput", err)
	}
}

func TestConvertTimeout(t *testing.T) {
	c := NewWithRunner(Config{Timeout: 20 * time.Millisecond}, &stubRunner{block: true}, nil)
	_, err := c.Convert(context.Background(), "/in/deck.ppt", t.TempDir())
	if !errors.Is(err, common.ErrToolTimeout) {
		t.Errorf("Convert() error = %v, want ErrToolTimeout", err)
	}
}

func TestConvertToolFailure(t *testing.T) {
	boom := errors.New("exit status 1")
	c := NewWithRunner(Config{}, &stubRunner{err: boom}, nil)
	_, err := c.Convert(context.Background(), "/in/sheet.xls", t.TempDir())
	if !errors.Is(err, boom) {
		t.Errorf("Convert() error = %v, want %v", err, boom)
	}
}

func TestConvertRejectsModernFormats(t *testing.T) {
	c := NewWithRunner(Config{}, &stubRunner{}, nil)
	if _, err := c.Convert(context.Background(), "/in/a.docx", t.TempDir()); !errors.Is(err, common.ErrUnsupportedType) {
		t.Errorf("Convert() error = %v, want ErrUnsupportedType", err)
	}
}

func TestExecRunnerKillsOnTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := ExecRunner{}.Run(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("Run() error = nil, want kill")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("Run() took %s, process group not killed", time.Since(start))
	}
}

func TestLibreOfficeRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("libreoffice"); err != nil {
		t.Skip("libreoffice not installed")
	}
	dir := t.TempDir()
	in := filepath.Join(dir, "memo.rtf")
	if err := os.WriteFile(in, []byte(`{\rtf1\ansi write to ann@example.com\par}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(Config{Timeout: time.Minute}, nil)
	out, err := c.Convert(context.Background(), in, dir)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if filepath.Ext(out) != ".docx" {
		t.Errorf("Convert() = %q, want .docx", out)
	}
}
