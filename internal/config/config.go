package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ListenAddr string `yaml:"listen_addr"`

	// SurrealDB connection (documents, conversations, messages)
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Qdrant vector index
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`

	// Embedding
	EmbedProvider  string `yaml:"embed_provider"` // "ollama" | "openai"
	EmbedModel     string `yaml:"embed_model"`
	EmbedDimension int    `yaml:"embed_dimension"`

	// Generation LLM
	LLMProvider     string   `yaml:"llm_provider"` // "ollama" | "openai"
	LLMModel        string   `yaml:"llm_model"`    // default chat model
	AvailableModels []string `yaml:"available_models"`
	OllamaHost      string   `yaml:"ollama_host"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`

	// Document converter (remote parse service for PDF and office formats)
	ConverterURL string `yaml:"converter_url"`

	// Ingestion
	ChunkSize         int   `yaml:"chunk_size"`    // characters
	ChunkOverlap      int   `yaml:"chunk_overlap"` // characters
	IngestConcurrency int   `yaml:"ingest_concurrency"`
	IngestTimeoutMin  int   `yaml:"ingest_timeout_min"`
	MaxFileSize       int64 `yaml:"max_file_size"` // bytes

	// Retrieval / chat defaults
	TopK            int     `yaml:"top_k"`
	MinScore        float64 `yaml:"min_score"`
	MMRLambda       float64 `yaml:"mmr_lambda"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	ContextMaxChars int     `yaml:"context_max_chars"`
	SystemPrompt    string  `yaml:"system_prompt"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// DefaultSystemPrompt instructs the model to prefer document context and to
// flag answers drawn from general knowledge.
const DefaultSystemPrompt = `You are a helpful assistant with access to documents provided in the context.

Rules:
1. If the answer is in the provided documents, base your answer on them and cite the sources.
2. If the answer is not in the documents but you know it, answer normally and state that the information comes from your general knowledge, not the documents.
3. Be precise and concise.`

// Load reads configuration from the environment, applying defaults.
// If DOCRAG_CONFIG points at a YAML file it is read first; environment
// variables override file values.
func Load() Config {
	cfg := defaults()

	if path := os.Getenv("DOCRAG_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			slog.Warn("failed to read config file, using env/defaults", "path", path, "error", err)
		}
	}

	cfg.ListenAddr = getEnv("DOCRAG_LISTEN_ADDR", cfg.ListenAddr)

	cfg.SurrealDBURL = getEnv("SURREALDB_URL", cfg.SurrealDBURL)
	cfg.SurrealDBNamespace = getEnv("SURREALDB_NAMESPACE", cfg.SurrealDBNamespace)
	cfg.SurrealDBDatabase = getEnv("SURREALDB_DATABASE", cfg.SurrealDBDatabase)
	cfg.SurrealDBUser = getEnv("SURREALDB_USER", cfg.SurrealDBUser)
	cfg.SurrealDBPass = getEnv("SURREALDB_PASS", cfg.SurrealDBPass)
	cfg.SurrealDBAuthLevel = getEnv("SURREALDB_AUTH_LEVEL", cfg.SurrealDBAuthLevel)

	cfg.QdrantURL = getEnv("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantAPIKey = getEnv("QDRANT_API_KEY", cfg.QdrantAPIKey)
	cfg.QdrantCollection = getEnv("QDRANT_COLLECTION", cfg.QdrantCollection)

	cfg.EmbedProvider = getEnv("DOCRAG_EMBED_PROVIDER", cfg.EmbedProvider)
	cfg.EmbedModel = getEnv("DOCRAG_EMBED_MODEL", cfg.EmbedModel)
	cfg.EmbedDimension = getEnvInt("DOCRAG_EMBED_DIMENSION", cfg.EmbedDimension)

	cfg.LLMProvider = getEnv("DOCRAG_LLM_PROVIDER", cfg.LLMProvider)
	cfg.LLMModel = getEnv("DOCRAG_LLM_MODEL", cfg.LLMModel)
	if models := os.Getenv("DOCRAG_AVAILABLE_MODELS"); models != "" {
		cfg.AvailableModels = splitCSV(models)
	}
	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)

	cfg.ConverterURL = getEnv("DOCRAG_CONVERTER_URL", cfg.ConverterURL)

	cfg.ChunkSize = getEnvInt("DOCRAG_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = getEnvInt("DOCRAG_CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.IngestConcurrency = getEnvInt("DOCRAG_INGEST_CONCURRENCY", cfg.IngestConcurrency)
	cfg.IngestTimeoutMin = getEnvInt("DOCRAG_INGEST_TIMEOUT_MIN", cfg.IngestTimeoutMin)
	cfg.MaxFileSize = getEnvInt("DOCRAG_MAX_FILE_SIZE", cfg.MaxFileSize)

	cfg.TopK = getEnvInt("DOCRAG_TOP_K", cfg.TopK)
	cfg.MaxTokens = getEnvInt("DOCRAG_MAX_TOKENS", cfg.MaxTokens)
	cfg.ContextMaxChars = getEnvInt("DOCRAG_CONTEXT_MAX_CHARS", cfg.ContextMaxChars)

	cfg.LogFile = getEnv("DOCRAG_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = parseLogLevel(getEnv("DOCRAG_LOG_LEVEL", "INFO"))

	return cfg
}

func defaults() Config {
	return Config{
		ListenAddr: ":8484",

		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "docrag",
		SurrealDBDatabase:  "app",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",

		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "documents",

		EmbedProvider:  "ollama",
		EmbedModel:     "bge-m3:567m",
		EmbedDimension: 1024,

		LLMProvider: "ollama",
		LLMModel:    "gemma3:4b",
		AvailableModels: []string{
			"gemma3:4b",
			"llama3.1:latest",
			"gemma3:12b",
		},
		OllamaHost: "http://localhost:11434",

		ChunkSize:         3000,
		ChunkOverlap:      450,
		IngestConcurrency: 4,
		IngestTimeoutMin:  20,
		MaxFileSize:       50 * 1024 * 1024,

		TopK:            5,
		MinScore:        0.3,
		MMRLambda:       0.6,
		Temperature:     0.1,
		MaxTokens:       1024,
		ContextMaxChars: 12000,
		SystemPrompt:    DefaultSystemPrompt,

		LogFile: "/tmp/docrag.log",
	}
}

// mergeFile overlays values from a YAML config file. Zero values in the file
// leave the current value untouched.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	merge(&c.ListenAddr, file.ListenAddr)
	merge(&c.SurrealDBURL, file.SurrealDBURL)
	merge(&c.SurrealDBNamespace, file.SurrealDBNamespace)
	merge(&c.SurrealDBDatabase, file.SurrealDBDatabase)
	merge(&c.SurrealDBUser, file.SurrealDBUser)
	merge(&c.SurrealDBPass, file.SurrealDBPass)
	merge(&c.SurrealDBAuthLevel, file.SurrealDBAuthLevel)
	merge(&c.QdrantURL, file.QdrantURL)
	merge(&c.QdrantAPIKey, file.QdrantAPIKey)
	merge(&c.QdrantCollection, file.QdrantCollection)
	merge(&c.EmbedProvider, file.EmbedProvider)
	merge(&c.EmbedModel, file.EmbedModel)
	merge(&c.EmbedDimension, file.EmbedDimension)
	merge(&c.LLMProvider, file.LLMProvider)
	merge(&c.LLMModel, file.LLMModel)
	merge(&c.OllamaHost, file.OllamaHost)
	merge(&c.OpenAIAPIKey, file.OpenAIAPIKey)
	merge(&c.ConverterURL, file.ConverterURL)
	merge(&c.ChunkSize, file.ChunkSize)
	merge(&c.ChunkOverlap, file.ChunkOverlap)
	merge(&c.IngestConcurrency, file.IngestConcurrency)
	merge(&c.IngestTimeoutMin, file.IngestTimeoutMin)
	merge(&c.MaxFileSize, file.MaxFileSize)
	merge(&c.TopK, file.TopK)
	merge(&c.MinScore, file.MinScore)
	merge(&c.MMRLambda, file.MMRLambda)
	merge(&c.Temperature, file.Temperature)
	merge(&c.MaxTokens, file.MaxTokens)
	merge(&c.ContextMaxChars, file.ContextMaxChars)
	merge(&c.SystemPrompt, file.SystemPrompt)
	merge(&c.LogFile, file.LogFile)
	if len(file.AvailableModels) > 0 {
		c.AvailableModels = file.AvailableModels
	}
	return nil
}

func merge[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt[T int | int64](key string, defaultVal T) T {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val)
		return defaultVal
	}
	return T(n)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
