package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/contact-harvester/constants"
	"github.com/joseph-ayodele/contact-harvester/internal/async"
	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/export"
	"github.com/joseph-ayodele/contact-harvester/internal/ingest"
	"github.com/joseph-ayodele/contact-harvester/internal/pipeline"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "run every staged document through classification and extraction",
		Flags: withConfig(
			&cli.StringFlag{Name: "source", Usage: "source dir (overrides staging.source_dir)"},
			&cli.IntFlag{Name: "workers", Usage: "worker count (overrides workers.count)"},
			&cli.StringFlag{Name: "report", Usage: "write an XLSX run report to this path"},
		),
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	cfg, logger, err := setup(c, func(cfg *common.Config) {
		if v := c.String("source"); v != "" {
			cfg.Staging.SourceDir = v
		}
		if v := c.Int("workers"); v > 0 {
			cfg.Workers.Count = v
		}
	})
	if err != nil {
		return err
	}

	docs, stats, err := ingest.Discover(c.Context, cfg.Staging.SourceDir, cfg.Staging.SkipHidden, logger)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	router := pipeline.NewRouter(cfg, logger)
	summary, err := pipeline.Run(c.Context, router, docs, logger,
		async.WithWorkers(cfg.Workers.Count),
		async.WithQueueSize(cfg.Workers.QueueSize),
		async.WithTaskTimeout(cfg.Workers.TaskTimeout),
	)
	printSummary(summary, stats, cfg.Staging.ProcessedDir)
	if p := c.String("report"); p != "" {
		if rerr := export.WriteRunReport(p, &summary, nil, logger); rerr != nil {
			return rerr
		}
		fmt.Printf("report: %s\n", p)
	}
	return err
}

func printSummary(s pipeline.Summary, stats ingest.DirStats, processedDir string) {
	fmt.Printf("Documents: %d discovered (%d supported), %d processed, %d records\n",
		stats.Matched, stats.Supported, s.Total, s.Records)
	for _, st := range constants.States {
		if n := s.Count(st); n > 0 {
			fmt.Printf("  %-24s %d\n", st, n)
		}
	}
	printIssues("Errors", s.Errors)
	printIssues("Skipped", s.Skipped)
	fmt.Printf("Artifacts in %s\n", processedDir)
}

func printIssues(title string, issues []pipeline.FileIssue) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, is := range issues {
		fmt.Printf("  %s: %s\n", is.Name, is.Reason)
	}
}
