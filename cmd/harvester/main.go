package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
)

func main() {
	app := &cli.App{
		Name:  "harvester",
		Usage: "extract contact addresses from document drops and index them",
		Commands: []*cli.Command{
			extractCommand(),
			indexCommand(),
			sourceCommand(),
			summaryCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to a YAML config file",
	EnvVars: []string{common.ConfigEnvVar},
}

// withConfig prepends the shared --config flag.
func withConfig(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{configFlag}, flags...)
}

// setup loads config, lets apply override it from flags, validates it and
// installs the process logger.
func setup(c *cli.Context, apply func(*common.Config)) (*common.Config, *slog.Logger, error) {
	cfg, err := common.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
