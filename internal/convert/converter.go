package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

type Config struct {
	Binary  string        // office suite binary; if empty -> "libreoffice"
	Timeout time.Duration // per call, default 6s
}

// Converter turns legacy office formats into their container equivalents
// with a headless office suite.
type Converter struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(cfg, ExecRunner{Logger: logger}, logger)
}

// NewWithRunner is New with an explicit Runner, for tests.
func NewWithRunner(cfg Config, r Runner, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "libreoffice"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 6 * time.Second
	}
	return &Converter{cfg: cfg, runner: r, logger: logger}
}

// Target returns the format in is converted to, if it is a legacy format.
func Target(in string) (string, bool) {
	f, ok := constants.LegacyTargets[constants.NormalizeExt(filepath.Ext(in))]
	return f, ok
}

// Convert writes outDir/<base>.<target> and returns its path.
func (c *Converter) Convert(ctx context.Context, in, outDir string) (string, error) {
	format, ok := Target(in)
	if !ok {
		return "", common.NewAppError("UNSUPPORTED_TYPE", in, common.ErrUnsupportedType)
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out := filepath.Join(outDir, base+"."+format)

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := c.runner.Run(cctx, c.cfg.Binary,
		"--headless", "--convert-to", format, "--outdir", outDir, in)

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		_ = os.Remove(out)
		c.logger.Warn("convert.timeout", "path", in, "timeout", c.cfg.Timeout)
		return "", common.NewAppError("TOOL_TIMEOUT",
			fmt.Sprintf("%s after %s", filepath.Base(in), c.cfg.Timeout), common.ErrToolTimeout)
	}
	if err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("%s: %w: %s", c.cfg.Binary, err, truncate(strings.TrimSpace(string(stderr)), 512))
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", common.NewAppError("TOOL_NO_OUTPUT", out, common.ErrToolNoOutput)
	}

	c.logger.Debug("convert.done", "path", in, "out", out, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
