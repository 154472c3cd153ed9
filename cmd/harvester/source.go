package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/contact-harvester/internal/index"
)

func sourceCommand() *cli.Command {
	return &cli.Command{
		Name:  "source",
		Usage: "manage source metadata",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "store metadata for a document source; prints its id",
				Flags: withConfig(
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "group"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "website"},
					&cli.StringFlag{Name: "url"},
					&cli.StringFlag{Name: "country"},
					&cli.StringFlag{Name: "discovered", Usage: "date the source was found, YYYY-MM-DD"},
					&cli.StringFlag{Name: "id", Usage: "source id; generated when empty"},
				),
				Action: sourceRegisterAction,
			},
		},
	}
}

func sourceRegisterAction(c *cli.Context) error {
	cfg, logger, err := setup(c, nil)
	if err != nil {
		return err
	}
	meta := index.SourceMeta{
		ID:          c.String("id"),
		Title:       c.String("title"),
		Group:       c.String("group"),
		Description: c.String("description"),
		Website:     c.String("website"),
		URL:         c.String("url"),
		Country:     c.String("country"),
	}
	if v := c.String("discovered"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return fmt.Errorf("invalid --discovered %q: want YYYY-MM-DD", v)
		}
		meta.Discovered = t
	}

	st, closeStore, err := openStore(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	meta, err = index.RegisterSource(c.Context, st, meta)
	if err != nil {
		return err
	}
	fmt.Println(meta.ID)
	return nil
}
