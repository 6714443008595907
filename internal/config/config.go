// Package config holds runtime configuration for the course RAG server.
package config

import (
	"fmt"
	"os"
)

// Config contains all tunable settings, populated from environment variables.
// Call godotenv.Load before Load to pick up a local .env file.
type Config struct {
	// HTTP server
	Addr string

	// Qdrant connection
	QdrantHost string
	QdrantPort int

	// Reasoning model
	ChatModel string
	MaxTokens int

	// Embedding model
	EmbeddingModel     string
	EmbeddingDimension int

	// Document processing
	ChunkSize    int // target chunk size in characters
	ChunkOverlap int // characters shared between adjacent chunks
	MaxResults   int // maximum search results returned by the search tool
	MaxHistory   int // conversation exchanges retained per session

	// DocsPath is the corpus folder loaded at startup. Empty disables
	// startup ingestion.
	DocsPath string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Addr:               getEnv("ADDR", "0.0.0.0:8000"),
		QdrantHost:         getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:         getEnvInt("QDRANT_PORT", 6334),
		ChatModel:          getEnv("CHAT_MODEL", "gpt-4o"),
		MaxTokens:          getEnvInt("CHAT_MAX_TOKENS", 800),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 100),
		MaxResults:         getEnvInt("MAX_RESULTS", 5),
		MaxHistory:         getEnvInt("MAX_HISTORY", 2),
		DocsPath:           getEnv("DOCS_PATH", "./docs"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
