// Package main provides the ingestion CLI for course documents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"course-rag-server/internal/chunker"
	"course-rag-server/internal/config"
	"course-rag-server/internal/embedding"
	"course-rag-server/internal/ingest"
	"course-rag-server/internal/storage"
)

var clearFirst bool

var rootCmd = &cobra.Command{
	Use:   "course-ingest",
	Short: "Course document indexing tool",
	Long:  "CLI tool for managing the course index in Qdrant",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Index course documents from a folder",
	Long: `Parses, chunks and indexes every course document in a folder.

This command:
1. Connects to Qdrant and verifies health
2. Optionally clears the existing index (--clear)
3. Parses each .txt and .md course document
4. Generates embeddings for chunks and course titles
5. Stores catalog entries and chunks in Qdrant

Already indexed courses are skipped unless --clear is given.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&clearFirst, "clear", false, "clear the existing index before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	folder := args[0]
	start := time.Now()

	fmt.Printf("Connecting to Qdrant at %s:%d...\n", cfg.QdrantHost, cfg.QdrantPort)

	embedder, err := embedding.NewEmbedder(cfg.EmbeddingModel, 0)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	index, err := storage.NewVectorIndex(cfg.QdrantHost, cfg.QdrantPort, embedder, cfg.EmbeddingDimension, cfg.MaxResults)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()

	if err := index.Health(ctx); err != nil {
		return fmt.Errorf("Qdrant health check failed: %w", err)
	}
	fmt.Println("Qdrant healthy")

	if clearFirst {
		fmt.Println("Clearing existing index...")
		if err := index.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}
	if err := index.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("failed to ensure collections: %w", err)
	}

	fmt.Printf("Indexing course documents from %s...\n", folder)
	pipeline := ingest.New(chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), index, slog.Default())

	result, err := pipeline.IngestFolder(ctx, folder, !clearFirst)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Courses added:   %d\n", result.CoursesAdded)
	fmt.Printf("  Courses skipped: %d\n", result.CoursesSkipped)
	fmt.Printf("  Chunks:          %d\n", result.ChunksAdded)
	fmt.Printf("  Duration:        %s\n", time.Since(start).Round(time.Second))

	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.Failed {
			fmt.Printf("  %s: %v\n", failed.Path, failed.Err)
		}
	}
	return nil
}
