package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

// Config tunes batching and retries.
type Config struct {
	BatchSize    int
	Retries      int
	RetryBackoff time.Duration
	IDSource     string
}

// FileIssue names an artifact that was not indexed and why.
type FileIssue struct {
	Name   string
	Reason string
}

// FailedBatch is a batch that exhausted its retries.
type FailedBatch struct {
	Seq     int
	Files   []string
	Records int
	Err     error
}

// Report summarizes one indexing run.
type Report struct {
	RunID         string
	Files         int // artifacts read
	Records       int // records upserted
	Batches       int // batches upserted
	Malformed     []FileIssue
	Skipped       []FileIssue
	FailedBatches []FailedBatch
	Duration      time.Duration
}

type Indexer struct {
	sink   Sink
	cfg    Config
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

func New(sink Sink, cfg Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Indexer{sink: sink, cfg: cfg, logger: logger, sleep: sleepCtx}
}

// batch accumulates records and the artifacts they came from.
type batch struct {
	records []Record
	files   []string
}

func (b *batch) add(r Record, file string) {
	b.records = append(b.records, r)
	if n := len(b.files); n == 0 || b.files[n-1] != file {
		b.files = append(b.files, file)
	}
}

func (b *batch) reset() {
	b.records = nil
	b.files = nil
}

// Run indexes every *.json artifact in dir, in lexical order. Malformed and
// empty artifacts are reported and skipped. Batches that still fail after
// their retries are reported and the run goes on; Run then returns an
// ErrTransport error alongside the full report.
func (ix *Indexer) Run(ctx context.Context, dir string) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString()}
	log := ix.logger.With("run_id", rep.RunID)
	ctx = common.WithLogger(common.WithRunID(ctx, rep.RunID), log)

	files, err := artifactFiles(dir)
	if err != nil {
		return rep, err
	}
	log.Info("indexer.start", "dir", dir, "artifacts", len(files), "batch_size", ix.cfg.BatchSize)

	var cur batch
	seq := 0
	flush := func() error {
		if len(cur.records) == 0 {
			return nil
		}
		seq++
		err := ix.upsert(ctx, log, seq, cur.records)
		switch {
		case err == nil:
			rep.Batches++
			rep.Records += len(cur.records)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			rep.FailedBatches = append(rep.FailedBatches, FailedBatch{
				Seq:     seq,
				Files:   append([]string(nil), cur.files...),
				Records: len(cur.records),
				Err:     err,
			})
		}
		cur.reset()
		return nil
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		name := filepath.Base(path)
		rep.Files++
		records, err := LoadArtifact(path)
		if err != nil {
			log.Warn("indexer.artifact.malformed", "file", name, "error", err)
			rep.Malformed = append(rep.Malformed, FileIssue{Name: name, Reason: err.Error()})
			continue
		}
		if len(records) == 0 {
			rep.Skipped = append(rep.Skipped, FileIssue{Name: name, Reason: "no records"})
			continue
		}
		for _, r := range records {
			r.IDSource = ix.cfg.IDSource
			r.RunID = rep.RunID
			cur.add(r, name)
			if len(cur.records) == ix.cfg.BatchSize {
				if err := flush(); err != nil {
					return rep, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return rep, err
	}

	rep.Duration = time.Since(start)
	log.Info("indexer.done",
		"files", rep.Files,
		"records", rep.Records,
		"batches", rep.Batches,
		"malformed", len(rep.Malformed),
		"skipped", len(rep.Skipped),
		"failed_batches", len(rep.FailedBatches),
		"duration_ms", rep.Duration.Milliseconds(),
	)
	if n := len(rep.FailedBatches); n > 0 {
		return rep, common.NewAppError("TRANSPORT_ERROR",
			fmt.Sprintf("%d of %d batches failed", n, n+rep.Batches),
			errors.Join(common.ErrTransport, rep.FailedBatches[0].Err))
	}
	return rep, nil
}

// upsert sends one batch, retrying with a linearly growing backoff.
func (ix *Indexer) upsert(ctx context.Context, log *slog.Logger, seq int, records []Record) error {
	var err error
	for attempt := 0; attempt <= ix.cfg.Retries; attempt++ {
		if attempt > 0 {
			wait := ix.cfg.RetryBackoff * time.Duration(attempt)
			log.Warn("indexer.batch.retry", "batch", seq, "attempt", attempt, "wait_ms", wait.Milliseconds(), "error", err)
			if serr := ix.sleep(ctx, wait); serr != nil {
				return serr
			}
		}
		if err = ix.sink.Upsert(ctx, records); err == nil {
			log.Debug("indexer.batch.flushed", "batch", seq, "records", len(records))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	log.Error("indexer.batch.failed", "batch", seq, "records", len(records), "error", err)
	return err
}

func artifactFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.NewAppError("INVALID_INPUT", "read artifact dir", errors.Join(common.ErrInvalidInput, err))
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
