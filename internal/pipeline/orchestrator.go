package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/async"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
)

// Orchestrator fans documents out to a worker pool and collects every
// outcome.
type Orchestrator struct {
	router    *Router
	queue     *async.Queue
	collector *Collector
	logger    *slog.Logger
	runID     string
	started   time.Time
}

func NewOrchestrator(router *Router, logger *slog.Logger, opts ...async.Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	return &Orchestrator{
		router:    router,
		queue:     async.New(logger, opts...),
		collector: &Collector{},
		logger:    logger,
		runID:     runID,
		started:   time.Now(),
	}
}

func (o *Orchestrator) RunID() string { return o.runID }

// Submit queues doc. It blocks while the queue is full.
func (o *Orchestrator) Submit(ctx context.Context, doc ingest.RawDocument) error {
	return o.queue.Enqueue(ctx, async.Job{
		Name: doc.Name,
		Run: func(ctx context.Context) error {
			ctx = common.WithRunID(ctx, o.runID)
			o.collector.Add(o.router.Process(ctx, doc))
			return nil
		},
	})
}

// Snapshot summarizes the outcomes collected so far.
func (o *Orchestrator) Snapshot() Summary { return o.collector.Summary() }

// Wait stops intake, drains the queue and returns the final summary.
func (o *Orchestrator) Wait(ctx context.Context) (Summary, error) {
	err := o.queue.Shutdown(ctx)
	s := o.collector.Summary()
	o.logSummary(s)
	return s, err
}

func (o *Orchestrator) logSummary(s Summary) {
	attrs := []any{
		"documents", s.Total,
		"records", s.Records,
		"errors", len(s.Errors),
		"duration_ms", time.Since(o.started).Milliseconds(),
	}
	for _, st := range constants.States {
		attrs = append(attrs, string(st), s.Count(st))
	}
	o.logger.Info("orchestrator.summary", attrs...)
}

// Run processes docs to completion.
func Run(ctx context.Context, router *Router, docs []ingest.RawDocument, logger *slog.Logger, opts ...async.Option) (Summary, error) {
	o := NewOrchestrator(router, logger, opts...)
	for _, d := range docs {
		if err := o.Submit(ctx, d); err != nil {
			// keep what already ran
			s, _ := o.Wait(context.Background())
			return s, err
		}
	}
	return o.Wait(context.Background())
}
