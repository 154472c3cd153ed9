package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/export"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "upsert emitted artifacts into the configured backend",
		Flags: withConfig(
			&cli.StringFlag{Name: "dir", Usage: "artifact dir (overrides index.artifact_dir)"},
			&cli.StringFlag{Name: "backend", Usage: "sqlite | postgres | elasticsearch"},
			&cli.IntFlag{Name: "batch-size", Usage: "records per upsert batch"},
			&cli.StringFlag{Name: "id-source", Usage: "source id stamped on every record"},
			&cli.StringFlag{Name: "report", Usage: "write an XLSX index report to this path"},
		),
		Action: indexAction,
	}
}

func indexAction(c *cli.Context) error {
	cfg, logger, err := setup(c, func(cfg *common.Config) {
		if v := c.String("dir"); v != "" {
			cfg.Index.ArtifactDir = v
		}
		if v := c.String("backend"); v != "" {
			cfg.Index.Backend = v
		}
		if v := c.Int("batch-size"); v > 0 {
			cfg.Index.BatchSize = v
		}
		if v := c.String("id-source"); v != "" {
			cfg.Index.IDSource = v
		}
	})
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ix := index.New(st, index.Config{
		BatchSize:    cfg.Index.BatchSize,
		Retries:      cfg.Index.Retries,
		RetryBackoff: cfg.Index.RetryBackoff,
		IDSource:     cfg.Index.IDSource,
	}, logger)
	rep, runErr := ix.Run(c.Context, cfg.Index.ArtifactDir)

	fmt.Printf("Index run %s: %d artifacts, %d records in %d batches (%s)\n",
		rep.RunID, rep.Files, rep.Records, rep.Batches, cfg.Index.Backend)
	for _, m := range rep.Malformed {
		fmt.Printf("  malformed %s: %s\n", m.Name, m.Reason)
	}
	for _, s := range rep.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.Name, s.Reason)
	}
	for _, fb := range rep.FailedBatches {
		fmt.Printf("  failed batch %d (%d records from %v): %v\n", fb.Seq, fb.Records, fb.Files, fb.Err)
	}

	if p := c.String("report"); p != "" {
		if err := export.WriteRunReport(p, nil, &rep, logger); err != nil {
			return err
		}
	}
	if errors.Is(runErr, common.ErrTransport) {
		return cli.Exit(runErr.Error(), 2)
	}
	return runErr
}
