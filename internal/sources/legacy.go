package sources

import (
	"context"
	"errors"
	"os"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/convert"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// legacyDoc is a converted copy of a binary office file. The copy lives in
// a private temp dir that goes away on Close.
type legacyDoc struct {
	Document
	tmp string
}

func (d *legacyDoc) Close() error {
	err := d.Document.Close()
	return errors.Join(err, os.RemoveAll(d.tmp))
}

func openLegacy(ctx context.Context, env *Env, f Format, doc ingest.RawDocument) (Document, error) {
	target, ok := convert.Target(doc.Path)
	if !ok || env.Converter == nil {
		return nil, common.NewAppError("UNSUPPORTED_TYPE", "no converter for "+doc.Ext, common.ErrUnsupportedType)
	}
	tmp, err := os.MkdirTemp("", "harvester-convert-*")
	if err != nil {
		return nil, err
	}
	out, err := env.Converter.Convert(ctx, doc.Path, tmp)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, err
	}

	converted := doc
	converted.Path = out
	converted.Ext = target
	inner, err := f.Open(ctx, env, converted)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, err
	}
	env.Logger.Debug("sources.legacy.converted", "name", doc.Name, "to", target)
	return &legacyDoc{Document: inner, tmp: tmp}, nil
}
