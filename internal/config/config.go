// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// APIKey guards the /api routes. Empty disables auth, for local use.
	APIKey string

	// OpenAI-compatible LLM endpoint
	LLMHost        string
	LLMToken       string
	EmbeddingModel string
	ChatModel      string

	// Transcription service
	ASRBaseURL      string
	ASRAppID        string
	ASRSecretKey    string
	ASRPollInterval time.Duration
	ASRMaxPolls     int

	// OCR service (optional; empty URL disables the scanned-PDF fallback)
	OCRBaseURL string
	OCRAPIKey  string

	// External tools
	YtDlpPath            string
	FfmpegPath           string
	PDFFallbackPdftotext bool

	// Storage
	UploadDir    string
	TreeCacheDir string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Tree construction
	MaxLayers           int
	MaxRootNodes        int
	MaxGroupSize        int
	SimilarityThreshold float64
	SummaryTokens       int
	EmbedWorkers        int

	// Retrieval
	TraversalTopK     int
	TraversalMaxDepth int
	FlatTopN          int

	// Retry policy for AI calls
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Task state
	TaskTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("API_KEY"),

		LLMHost:        envOr("LLM_HOST", "http://localhost:11434"),
		LLMToken:       os.Getenv("LLM_TOKEN"),
		EmbeddingModel: envOr("EMBEDDING_MODEL", "nomic-embed-text"),
		ChatModel:      envOr("CHAT_MODEL", "qwen2.5:14b"),

		ASRBaseURL:      os.Getenv("ASR_BASE_URL"),
		ASRAppID:        os.Getenv("ASR_APP_ID"),
		ASRSecretKey:    os.Getenv("ASR_SECRET_KEY"),
		ASRPollInterval: envDuration("ASR_POLL_INTERVAL", 10*time.Second),
		ASRMaxPolls:     envInt("ASR_MAX_POLLS", 90),

		OCRBaseURL: os.Getenv("OCR_BASE_URL"),
		OCRAPIKey:  os.Getenv("OCR_API_KEY"),

		YtDlpPath:            envOr("YTDLP_PATH", "yt-dlp"),
		FfmpegPath:           envOr("FFMPEG_PATH", "ffmpeg"),
		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		UploadDir:    envOr("UPLOAD_DIR", "./data/uploads"),
		TreeCacheDir: envOr("TREE_CACHE_DIR", "./data/trees"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 16),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkSize:    envInt("CHUNK_SIZE", 250),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 40),

		MaxLayers:           envInt("TREE_MAX_LAYERS", 5),
		MaxRootNodes:        envInt("TREE_MAX_ROOT_NODES", 5),
		MaxGroupSize:        envInt("TREE_MAX_GROUP_SIZE", 5),
		SimilarityThreshold: envFloat("TREE_SIMILARITY_THRESHOLD", 0.5),
		SummaryTokens:       envInt("TREE_SUMMARY_TOKENS", 500),
		EmbedWorkers:        envInt("EMBED_WORKERS", 4),

		TraversalTopK:     envInt("TRAVERSAL_TOP_K", 3),
		TraversalMaxDepth: envInt("TRAVERSAL_MAX_DEPTH", 6),
		FlatTopN:          envInt("FLAT_TOP_N", 5),

		RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   envDuration("RETRY_BASE_DELAY", 1*time.Second),

		TaskTTL: envDuration("TASK_TTL", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.LLMHost == "" {
		return fmt.Errorf("LLM_HOST is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("EMBEDDING_MODEL is required")
	}
	if c.ChatModel == "" {
		return fmt.Errorf("CHAT_MODEL is required")
	}
	if c.ASRBaseURL != "" && (c.ASRAppID == "" || c.ASRSecretKey == "") {
		return fmt.Errorf("ASR_APP_ID and ASR_SECRET_KEY are required when ASR_BASE_URL is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
