package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/contact-harvester/internal/async"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
	"github.com/joseph-ayodele/contact-harvester/internal/pipeline"
	"github.com/joseph-ayodele/contact-harvester/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := common.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("config.invalid", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Staging.SourceDir, 0o755); err != nil {
		logger.Error("staging.mkdir.failed", "dir", cfg.Staging.SourceDir, "error", err)
		os.Exit(1)
	}

	// gRPC health
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	hs := server.NewHealth(logger)
	go func() {
		if err := hs.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go hs.Watch(ctx, 15*time.Second, func(context.Context) error {
		_, err := os.Stat(cfg.Staging.SourceDir)
		return err
	})

	orch := pipeline.NewOrchestrator(pipeline.NewRouter(cfg, logger), logger,
		async.WithWorkers(cfg.Workers.Count),
		async.WithQueueSize(cfg.Workers.QueueSize),
		async.WithTaskTimeout(cfg.Workers.TaskTimeout),
	)
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Staging.SourceDir},
		SkipHidden:  cfg.Staging.SkipHidden,
		InitialScan: cfg.Watch.InitialScan,
		Debounce:    cfg.Watch.Debounce,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("watcher.start.failed", "error", err)
		os.Exit(1)
	}
	logger.Info("harvesterd.started", "run_id", orch.RunID(), "source_dir", cfg.Staging.SourceDir, "grpc_addr", cfg.Server.GRPCAddr)

loop:
	for {
		select {
		case p, ok := <-events:
			if !ok {
				break loop
			}
			doc, err := ingest.NewRawDocument(p)
			if err != nil {
				// moved or removed between the event and now
				logger.Debug("harvesterd.stat.skipped", "path", p, "error", err)
				continue
			}
			if err := orch.Submit(ctx, doc); err != nil {
				logger.Warn("harvesterd.submit.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("harvesterd.watch.error", "error", err)
		case <-ctx.Done():
			break loop
		}
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Workers.TaskTimeout+10*time.Second)
	defer cancel()
	hs.SetServing(false)
	if _, err := orch.Wait(shutdownCtx); err != nil {
		logger.Warn("orchestrator.drain.incomplete", "error", err)
	}
	hs.Stop(shutdownCtx)
	logger.Info("stopped.")
}
