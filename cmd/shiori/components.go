package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/shiori/internal/cluster"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/keyword"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config  *config.Config
	Storage storage.Storage
	Encoder *embedding.Encoder
	Engine  *search.Engine
	Indexer *indexer.Indexer
}

// Close releases the encoder and the storage.
func (c *Components) Close() {
	if c.Encoder != nil {
		_ = c.Encoder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("storage initialized", zap.String("driver", store.Driver()))

	encoder, err := embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize encoder: %w", err)
	}
	logger.Info("encoder initialized",
		zap.String("model", string(encoder.Model())),
		zap.Int("dimensions", encoder.Dimensions()))

	extractor, err := keyword.New()
	if err != nil {
		_ = encoder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword extractor: %w", err)
	}
	clusters := cluster.NewEngine(extractor,
		cluster.WithLogger(logger),
		cluster.WithKeywordCount(cfg.Clusters.Keywords))

	engine := search.NewEngine(store, encoder, clusters, cfg.Search, cfg.Clusters, search.WithLogger(logger))
	idx := indexer.NewIndexer(engine, cfg.Import.Owner,
		indexer.WithBook(cfg.Import.BookID),
		indexer.WithLogger(logger))

	return &Components{
		Config:  cfg,
		Storage: store,
		Encoder: encoder,
		Engine:  engine,
		Indexer: idx,
	}, nil
}
