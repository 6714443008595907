// Package main provides the course RAG server entry point.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"course-rag-server/internal/api"
	"course-rag-server/internal/chunker"
	"course-rag-server/internal/config"
	"course-rag-server/internal/embedding"
	"course-rag-server/internal/generator"
	"course-rag-server/internal/ingest"
	mcpserver "course-rag-server/internal/mcp"
	"course-rag-server/internal/rag"
	"course-rag-server/internal/search"
	"course-rag-server/internal/session"
	"course-rag-server/internal/storage"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Embedder, whose OpenAI client is shared with the generator below
	embedder, err := embedding.NewEmbedder(cfg.EmbeddingModel, 0)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	// Vector index
	index, err := storage.NewVectorIndex(cfg.QdrantHost, cfg.QdrantPort, embedder, cfg.EmbeddingDimension, cfg.MaxResults)
	if err != nil {
		logger.Error("failed to connect to Qdrant", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	if err := index.EnsureCollections(ctx); err != nil {
		logger.Error("failed to ensure collections", "error", err)
		os.Exit(1)
	}

	// Startup ingestion. Failures are logged, not fatal; the server can
	// answer over whatever is already indexed.
	if cfg.DocsPath != "" {
		pipeline := ingest.New(chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), index, logger)
		if result, err := pipeline.IngestFolder(ctx, cfg.DocsPath, true); err != nil {
			logger.Warn("startup ingestion skipped", "path", cfg.DocsPath, "error", err)
		} else {
			logger.Info("startup ingestion done",
				"added", result.CoursesAdded,
				"skipped", result.CoursesSkipped,
				"failed", len(result.Failed))
		}
	}

	// Tool registry
	registry := search.NewRegistry()
	for _, tool := range []search.Tool{
		search.NewCourseSearchTool(index),
		search.NewCourseOutlineTool(index),
	} {
		if err := registry.Register(tool); err != nil {
			logger.Error("failed to register tool", "tool", tool.Name(), "error", err)
			os.Exit(1)
		}
	}

	// Orchestration
	gen := generator.New(embedder.Client(), cfg.ChatModel, int64(cfg.MaxTokens), logger)
	sessions := session.NewStore(cfg.MaxHistory)
	system := rag.NewSystem(sessions, index, registry, gen, logger)

	// MCP surface, mounted alongside the JSON API
	mcpSrv := mcpserver.NewServer(&mcpserver.Config{Index: index})

	router := api.NewServer(system, index, logger).Router(map[string]http.Handler{
		"/mcp": mcpSrv.HTTPHandler(),
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
