package main

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/contact-harvester/internal/common"
	"github.com/joseph-ayodele/contact-harvester/internal/index"
	"github.com/joseph-ayodele/contact-harvester/internal/repository"
)

// store is what every backend offers the CLI.
type store interface {
	index.Sink
	index.SourceStore
}

// openStore connects to the configured backend and prepares its schema or
// index. The returned func releases it.
func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.Index.Backend == "elasticsearch" {
		es, err := index.NewElasticSink(cfg.Elastic, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := es.EnsureIndex(ctx); err != nil {
			return nil, nil, err
		}
		return es, func() {}, nil
	}

	db, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cs := repository.NewContactStore(db)
	if err := cs.EnsureSchema(ctx); err != nil {
		db.Close(logger)
		return nil, nil, err
	}
	return cs, func() { db.Close(logger) }, nil
}
