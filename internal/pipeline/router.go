package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/classify"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/emit"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
	"github.com/joseph-ayodele/contact-harvester/internal/sources"
)

// Router takes one staged document to a terminal state.
type Router struct {
	Registry   *sources.Registry
	Classifier *classify.Classifier
	Emitter    *emit.Emitter
	Ledger     *ingest.Ledger
	Stager     *Stager
	MinSize    int64
	Logger     *slog.Logger
}

// Process runs doc through dispatch, dedup, classification, extraction and
// emission. Failures become outcomes; Process never returns an error.
func (r *Router) Process(ctx context.Context, doc ingest.RawDocument) (out Outcome) {
	start := time.Now()
	out = Outcome{Path: doc.Path, Name: doc.Name}
	log := r.Logger.With("name", doc.Name)
	if id := common.RunIDFromContext(ctx); id != "" {
		log = log.With("run_id", id)
	}
	defer func() {
		out.Duration = time.Since(start)
		log.Info("router.done",
			"state", out.State,
			"verdict", out.Verdict,
			"reason", out.Reason,
			"records", out.Records,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}()

	format, ok := r.Registry.Lookup(doc.Ext)
	if !ok {
		log.Info("router.discard.unsupported", "ext", doc.Ext)
		return r.discard(out, doc, constants.StateDiscardedUnsupported, "unsupported_type")
	}
	if doc.Size < r.MinSize {
		log.Info("router.discard.tiny", "size", doc.Size)
		return r.discard(out, doc, constants.StateDiscardedTiny, "below_size_floor")
	}

	fp, err := ingest.FingerprintFile(doc.Path)
	if err != nil {
		return r.fail(out, doc, err)
	}
	out.Fingerprint = fp
	if !r.Ledger.CheckAndInsert(fp) {
		log.Info("router.discard.duplicate", "fingerprint", fp)
		return r.discard(out, doc, constants.StateDiscardedDuplicate, "duplicate_content")
	}

	if format.Handoff {
		if v, ok := r.Classifier.Override(doc.Name); ok {
			out.Verdict, out.Reason = v.Kind.String(), v.Reason
			return r.route(out, doc, r.Stager.ToRedirect)
		}
	}

	d, err := r.Registry.Open(ctx, format, doc)
	if err != nil {
		return r.fail(out, doc, err)
	}
	closed := false
	closeDoc := func() {
		if !closed {
			closed = true
			if err := d.Close(); err != nil {
				log.Warn("router.close.failed", "error", err)
			}
		}
	}
	defer closeDoc()

	v, err := d.Classify(ctx, r.Classifier)
	if err != nil {
		closeDoc()
		return r.fail(out, doc, err)
	}
	out.Verdict, out.Reason = v.Kind.String(), v.Reason
	if v.Kind == classify.Scanned {
		closeDoc()
		if format.Handoff {
			return r.route(out, doc, r.Stager.ToScanned)
		}
		return r.discard(out, doc, constants.StateDiscardedEmpty, "no_text_layer")
	}

	res, err := d.Extract(ctx)
	closeDoc()
	if err != nil {
		return r.fail(out, doc, err)
	}
	if res.Empty() {
		return r.discard(out, doc, constants.StateDiscardedEmpty, "empty_extraction")
	}

	path, err := r.Emitter.Emit(doc, fp, res)
	if err != nil {
		return r.fail(out, doc, common.NewAppError("EMIT_ERROR", doc.Name, err))
	}
	out.State, out.Artifact, out.Records, out.Reason = constants.StateEmitted, path, res.Len(), "emitted"
	if err := r.Stager.Remove(doc); err != nil {
		log.Warn("router.remove.failed", "error", err)
	}
	return out
}

func (r *Router) discard(out Outcome, doc ingest.RawDocument, state constants.DocState, reason string) Outcome {
	out.State, out.Reason = state, reason
	if err := r.Stager.Remove(doc); err != nil {
		r.Logger.Warn("router.remove.failed", "name", doc.Name, "error", err)
	}
	return out
}

func (r *Router) route(out Outcome, doc ingest.RawDocument, move func(ingest.RawDocument) (string, error)) Outcome {
	dst, err := move(doc)
	if err != nil {
		return r.fail(out, doc, common.NewAppError("STAGING_ERROR", doc.Name, err))
	}
	out.State, out.Artifact = constants.StateRouted, dst
	return out
}

// fail ends doc as DiscardFailed. Errors outside the taxonomy are treated
// as decode failures.
func (r *Router) fail(out Outcome, doc ingest.RawDocument, err error) Outcome {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		err = common.DecodeError(doc.Name, err)
	}
	out.State, out.Err, out.Reason = constants.StateDiscardFailed, err, common.Reason(err)
	r.Logger.Error("router.discard.failed", "name", doc.Name, "reason", out.Reason, "error", err)
	if ferr := r.Stager.Fail(doc); ferr != nil {
		r.Logger.Warn("router.park.failed", "name", doc.Name, "error", ferr)
	}
	return out
}
