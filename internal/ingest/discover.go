package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned   uint32 // entries visited
	Matched   uint32 // regular files returned
	Hidden    uint32 // hidden files and dirs skipped
	Failed    uint32 // entries that could not be read
	Bytes     int64
	Supported uint32 // returned files with a known extension
}

// Discover walks root and returns every regular file in lexical order.
// Unsupported files are returned too; the router is what discards them.
func Discover(ctx context.Context, root string, skipHidden bool, logger *slog.Logger) ([]RawDocument, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var docs []RawDocument
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.walk.error", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			stats.Hidden++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		doc, err := NewRawDocument(path)
		if err != nil {
			logger.Warn("ingest.stat.error", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.Matched++
		stats.Bytes += doc.Size
		if Supported(doc.Ext) {
			stats.Supported++
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return docs, stats, fmt.Errorf("walk: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	logger.Info("ingest.discovered",
		"root", root,
		"files", stats.Matched,
		"supported", stats.Supported,
		"hidden_skipped", stats.Hidden,
		"failed", stats.Failed,
	)
	return docs, stats, nil
}
