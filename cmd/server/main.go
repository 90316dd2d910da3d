package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/liuwen-dev/studyforge/internal/ai"
	"github.com/liuwen-dev/studyforge/internal/ai/asr"
	"github.com/liuwen-dev/studyforge/internal/ai/ocr"
	"github.com/liuwen-dev/studyforge/internal/ai/openai"
	"github.com/liuwen-dev/studyforge/internal/api"
	"github.com/liuwen-dev/studyforge/internal/config"
	"github.com/liuwen-dev/studyforge/internal/library"
	"github.com/liuwen-dev/studyforge/internal/media"
	"github.com/liuwen-dev/studyforge/internal/parser"
	"github.com/liuwen-dev/studyforge/internal/pipeline"
	"github.com/liuwen-dev/studyforge/internal/retrieve"
	"github.com/liuwen-dev/studyforge/internal/task"
	"github.com/liuwen-dev/studyforge/internal/tree"
)

func main() {
	godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// LLM provider for embeddings, summaries and answers.
	llmCfg := openai.Config{
		Host:           cfg.LLMHost,
		Token:          cfg.LLMToken,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatModel:      cfg.ChatModel,
	}
	provider, err := openai.NewProvider(llmCfg, log)
	if err != nil {
		log.Error("llm provider init failed", "error", err)
		os.Exit(1)
	}

	var transcriber ai.Transcriber
	if cfg.ASRBaseURL != "" {
		transcriber = asr.NewClient(asr.Config{
			BaseURL:      cfg.ASRBaseURL,
			AppID:        cfg.ASRAppID,
			SecretKey:    cfg.ASRSecretKey,
			PollInterval: cfg.ASRPollInterval,
			MaxPolls:     cfg.ASRMaxPolls,
		}, log)
	}

	var ocrClient ai.OCR
	if cfg.OCRBaseURL != "" {
		ocrClient = ocr.NewClient(cfg.OCRBaseURL, cfg.OCRAPIKey, log)
	}

	cache, err := tree.OpenCache(cfg.TreeCacheDir, log)
	if err != nil {
		log.Error("tree cache open failed", "dir", cfg.TreeCacheDir, "error", err)
		os.Exit(1)
	}

	retry := ai.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}
	libCfg := library.Config{
		Chunk: tree.ChunkConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		},
		Build: tree.BuildConfig{
			MaxLayers:           cfg.MaxLayers,
			MaxRootNodes:        cfg.MaxRootNodes,
			MaxGroupSize:        cfg.MaxGroupSize,
			SimilarityThreshold: float32(cfg.SimilarityThreshold),
			SummaryTokens:       cfg.SummaryTokens,
			EmbedWorkers:        cfg.EmbedWorkers,
		},
		Traversal: retrieve.TraversalConfig{
			TopK:     cfg.TraversalTopK,
			MaxDepth: cfg.TraversalMaxDepth,
		},
		FlatTopN: cfg.FlatTopN,
	}
	lib := library.New(provider, cache, retry, libCfg, log)

	tasks := task.NewStore(cfg.TaskTTL, log)
	downloader := media.NewDownloader(cfg.YtDlpPath, cfg.UploadDir, log)
	extractor := media.NewExtractor(cfg.FfmpegPath, log)
	parsers := parser.NewRegistry(ocrClient, cfg.PDFFallbackPdftotext)

	orch := pipeline.NewOrchestrator(pipeline.Config{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
	}, tasks, downloader, extractor, transcriber, parsers, lib, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, lib, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		provider.Close()
		cache.Close()
	}()

	log.Info("starting studyforge", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
