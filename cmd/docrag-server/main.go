// Package main runs the docrag API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/docrag/internal/chat"
	"github.com/raphaelgruber/docrag/internal/chunker"
	"github.com/raphaelgruber/docrag/internal/config"
	"github.com/raphaelgruber/docrag/internal/embed"
	"github.com/raphaelgruber/docrag/internal/ingest"
	"github.com/raphaelgruber/docrag/internal/llm"
	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/parser"
	"github.com/raphaelgruber/docrag/internal/retrieval"
	"github.com/raphaelgruber/docrag/internal/server"
	"github.com/raphaelgruber/docrag/internal/store"
	"github.com/raphaelgruber/docrag/internal/util"
	"github.com/raphaelgruber/docrag/internal/vector"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLog(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	logger.Info("starting docrag-server", "addr", cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *wipeDB, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, wipeDB bool, logger *slog.Logger) error {
	// Dependencies may still be coming up (docker compose), give them time.
	startupCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var storeClient *store.Client
	err := util.WaitReady(startupCtx, "surrealdb", logger, func(ctx context.Context) error {
		var err error
		storeClient, err = store.NewClient(ctx, store.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := storeClient.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	if err := storeClient.InitSchema(startupCtx); err != nil {
		return err
	}
	if wipeDB || os.Getenv("DOCRAG_WIPE_DB") == "true" {
		if err := storeClient.WipeData(startupCtx); err != nil {
			return err
		}
	}

	embedder, err := embed.NewEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	if err := util.WaitReady(startupCtx, "embedding model", logger, embedder.Probe); err != nil {
		return err
	}

	vectorClient := vector.NewClient(vector.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	}, logger)
	if err := util.WaitReady(startupCtx, "qdrant", logger, vectorClient.Healthy); err != nil {
		return err
	}
	if err := vectorClient.EnsureCollection(startupCtx, embedder.Dimension()); err != nil {
		return err
	}

	model, err := llm.NewModel(cfg, logger)
	if err != nil {
		return err
	}

	var remote *parser.RemoteConverter
	if cfg.ConverterURL != "" {
		remote = parser.NewRemoteConverter(cfg.ConverterURL, logger)
	}
	fileParser := parser.New(remote, logger)

	collector := metrics.NewCollector()
	storeClient.SetCollector(collector)

	pipeline := ingest.NewPipeline(storeClient, fileParser, embedder, vectorClient, collector, ingest.Config{
		Concurrency: cfg.IngestConcurrency,
		Timeout:     time.Duration(cfg.IngestTimeoutMin) * time.Minute,
		MaxFileSize: cfg.MaxFileSize,
		Chunking: chunker.Config{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
	}, logger)
	defer pipeline.Close()

	engine := retrieval.NewEngine(embedder, vectorClient, collector, logger)

	orchestrator := chat.NewOrchestrator(storeClient, engine, model, collector, chat.Settings{
		SystemPrompt:    cfg.SystemPrompt,
		TopK:            cfg.TopK,
		MinScore:        cfg.MinScore,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		ContextMaxChars: cfg.ContextMaxChars,
	}, logger)

	srv := server.New(pipeline, storeClient, storeClient, orchestrator, collector, server.Config{
		ListenAddr:    cfg.ListenAddr,
		MaxUploadSize: cfg.MaxFileSize,
		Models:        cfg.AvailableModels,
		DefaultModel:  cfg.LLMModel,
	}, logger)

	return srv.Run(ctx)
}
