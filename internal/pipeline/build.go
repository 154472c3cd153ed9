package pipeline

import (
	"log/slog"

	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/convert"
	"github.com/joseph-ayodele/contact-harvester/internal/emit"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
	"github.com/joseph-ayodele/contact-harvester/internal/sources"
)

// NewRouter wires a Router from configuration. The ledger is fresh, so
// content dedup spans exactly the lifetime of the returned Router.
func NewRouter(cfg *common.Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	x := extract.New(extract.Config{
		Strict:          cfg.Extract.StrictCheck,
		PrecheckPages:   cfg.Extract.PrecheckPages,
		AbortAfterLines: cfg.Extract.AbortAfterLines,
	}, logger)
	conv := convert.New(convert.Config{
		Binary:  cfg.Convert.Binary,
		Timeout: cfg.Convert.Timeout,
	}, logger)
	reg := sources.NewRegistry(&sources.Env{
		Extractor: x,
		Windows: sources.Windows{
			Line:   cfg.Extract.LineWindow,
			Page:   cfg.Extract.PageWindow,
			Markup: cfg.Extract.MarkupWindow,
		},
		Charset:   cfg.Extract.Charset,
		Converter: conv,
		Logger:    logger,
	})
	return &Router{
		Registry:   reg,
		Classifier: classify.New(cfg.Classify.Threshold, cfg.Classify.RedirectRequire, cfg.Classify.RedirectAny),
		Emitter:    emit.New(cfg.Staging.ProcessedDir, logger),
		Ledger:     ingest.NewLedger(),
		Stager:     NewStager(cfg.Staging),
		MinSize:    cfg.Staging.MinSizeBytes,
		Logger:     logger,
	}
}
