package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
)

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "count artifacts and records without indexing",
		Flags: withConfig(
			&cli.StringFlag{Name: "dir", Usage: "artifact dir (overrides index.artifact_dir)"},
		),
		Action: summaryAction,
	}
}

func summaryAction(c *cli.Context) error {
	cfg, _, err := setup(c, func(cfg *common.Config) {
		if v := c.String("dir"); v != "" {
			cfg.Index.ArtifactDir = v
		}
	})
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cfg.Index.ArtifactDir)
	if err != nil {
		return fmt.Errorf("read artifact dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records, bad := 0, 0
	domains := map[string]int{}
	for _, n := range names {
		recs, err := index.LoadArtifact(filepath.Join(cfg.Index.ArtifactDir, n))
		if err != nil {
			bad++
			fmt.Printf("  malformed %s: %v\n", n, err)
			continue
		}
		records += len(recs)
		for _, r := range recs {
			domains[r.Domain]++
		}
	}

	fmt.Printf("%d artifacts, %d records, %d malformed, %d domains\n", len(names), records, bad, len(domains))
	type dc struct {
		domain string
		n      int
	}
	var top []dc
	for d, n := range domains {
		top = append(top, dc{d, n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].n != top[j].n {
			return top[i].n > top[j].n
		}
		return top[i].domain < top[j].domain
	})
	for i, t := range top {
		if i == 10 {
			break
		}
		fmt.Printf("  %-32s %d\n", t.domain, t.n)
	}
	return nil
}
