package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chunkstore/config"
	"chunkstore/database"
	"chunkstore/ingest"
	"chunkstore/llmclient"
	"chunkstore/search"
	"chunkstore/vectorindex"
	"chunkstore/web"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	store, err := database.NewPostgresStore(cfg.DatabaseURL, cfg.StorePoolSize)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	index := vectorindex.New(store.DB, logger)
	if err := index.EnsureSchema(ctx, cfg.DefaultEmbeddingSize); err != nil {
		logger.Fatal("Failed to ensure vector index schema", zap.Error(err))
	}

	datasets, err := database.NewDatasetResolver(store, cfg.DatasetCacheSize)
	if err != nil {
		logger.Fatal("Failed to initialize dataset cache", zap.Error(err))
	}

	embedder, err := llmclient.NewEmbedder(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	reranker := llmclient.NewReranker(cfg, logger)

	engine := ingest.NewEngine(store, index, embedder, logger)
	ranker := search.NewRanker(index, store, store, embedder, reranker, logger,
		cfg.PageSize, cfg.RecencyHalfLife, cfg.RecencyBonusWeight)

	webServer := web.NewServer(engine, ranker, store, datasets, logger, cfg)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port := fmt.Sprintf(":%d", cfg.WebPort)
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
