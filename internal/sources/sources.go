// Package sources opens staged documents by type and exposes each one to
// the classifier and the extractor.
package sources

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/convert"
	"github.com/joseph-ayodele/contact-harvester/internal/extract"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// Document is one opened source.
type Document interface {
	// Classify decides whether the document has a usable text layer.
	Classify(ctx context.Context, c *classify.Classifier) (classify.Verdict, error)
	// Extract collects the document's addresses.
	Extract(ctx context.Context) (extract.Result, error)
	Close() error
}

// Opener opens doc for reading.
type Opener func(ctx context.Context, env *Env, doc ingest.RawDocument) (Document, error)

// Windows are the context widths, in runes either side of a match.
type Windows struct {
	Line   int
	Page   int
	Markup int
}

// Env is what every reader shares.
type Env struct {
	Extractor *extract.Extractor
	Windows   Windows
	Charset   string // fallback when a text source has no BOM
	Converter *convert.Converter
	Logger    *slog.Logger
}

// Format binds a source kind to its reader.
type Format struct {
	Kind constants.SourceKind
	// Handoff formats have a heavier downstream path (OCR, manual review),
	// so scanned and redirected documents are moved rather than discarded.
	Handoff bool
	Open    Opener
}

// Registry dispatches on normalized extension.
type Registry struct {
	env     *Env
	formats map[constants.SourceKind]Format
}

func NewRegistry(env *Env) *Registry {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Charset == "" {
		env.Charset = "utf-8"
	}
	r := &Registry{env: env, formats: map[constants.SourceKind]Format{
		constants.KindText:   {Kind: constants.KindText, Open: openText},
		constants.KindPDF:    {Kind: constants.KindPDF, Handoff: true, Open: openPDF},
		constants.KindWord:   {Kind: constants.KindWord, Handoff: true, Open: openWord},
		constants.KindSlides: {Kind: constants.KindSlides, Handoff: true, Open: openSlides},
		constants.KindHTML:   {Kind: constants.KindHTML, Open: openHTML},
		constants.KindXML:    {Kind: constants.KindXML, Open: openXML},
		constants.KindCSV:    {Kind: constants.KindCSV, Open: openCSV},
		constants.KindSheet:  {Kind: constants.KindSheet, Open: openSheet},
	}}
	return r
}

// Lookup returns the format for a normalized extension.
func (r *Registry) Lookup(ext string) (Format, bool) {
	kind, ok := constants.Extensions[constants.NormalizeExt(ext)]
	if !ok {
		return Format{}, false
	}
	f, ok := r.formats[kind]
	return f, ok
}

// Open opens doc with f, converting legacy formats first.
func (r *Registry) Open(ctx context.Context, f Format, doc ingest.RawDocument) (Document, error) {
	if _, legacy := constants.LegacyTargets[doc.Ext]; legacy {
		return openLegacy(ctx, r.env, f, doc)
	}
	return f.Open(ctx, r.env, doc)
}
