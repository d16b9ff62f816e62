// Package config loads the single immutable configuration object the rest
// of the engine depends on.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP Service Surface.
type ServerConfig struct {
	Host                           string
	Port                           int
	CORSOrigins                    []string
	APIKey                         string
	RateLimitPerMinute             int
	UploadRateLimitPerMinute       int
	StreamConnectionTimeoutMinutes int
	RequestTimeoutSeconds          int
}

// VectorConfig controls embedding dimension and collection identity.
type VectorConfig struct {
	EmbeddingDim     int
	CollectionName   string
	QdrantURL        string
	QdrantAPIKey     string
	HealthCheck      bool
	BatchSize        int
	QueueCapacity    int
	FailureThreshold int // consecutive transient failures before Degraded
}

// ChunkingConfig controls the DocumentPipeline chunker.
type ChunkingConfig struct {
	ChunkSize            int
	ChunkOverlap         int
	MaxFileSize          int64
	SupportedFormats     []string
	MaxChunksPerDocument int
	EmbeddingBatchSize   int
}

// RAGConfig supplies RAGPipeline defaults.
type RAGConfig struct {
	TopKDefault             int
	ScoreThresholdDefault   float64
	MaxContextLengthDefault int
	QueryTimeoutSeconds     int
	UploadTimeoutSeconds    int
}

// MemoryConfig controls the memory monitor and the GC/compaction tick; these
// are two distinct background workers with independent intervals.
type MemoryConfig struct {
	ThresholdMB           int
	CriticalThresholdMB   int
	SampleIntervalSeconds int
	GCIntervalSeconds     int
	AlertHistorySize      int
}

// CacheConfig controls the embedding LRU (+ optional redis L2).
type CacheConfig struct {
	MaxSize  int
	TTL      time.Duration
	RedisURL string // empty disables the L2 layer
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// ModelConfig controls the HTTP-JSON embedder and generator adapters.
type ModelConfig struct {
	EmbedderEndpoint  string
	EmbedderAPIKey    string
	GeneratorEndpoint string
	GeneratorAPIKey   string
}

// Config is the single immutable configuration object loaded at startup.
type Config struct {
	Server   ServerConfig
	Vector   VectorConfig
	Chunking ChunkingConfig
	RAG      RAGConfig
	Memory   MemoryConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	Models   ModelConfig

	// DataDir holds the SQLite metadata database file.
	DataDir string
}

// Default returns the configuration with every documented default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                           "0.0.0.0",
			Port:                           8080,
			CORSOrigins:                    []string{"*"},
			RateLimitPerMinute:             60,
			UploadRateLimitPerMinute:       10,
			StreamConnectionTimeoutMinutes: 30,
			RequestTimeoutSeconds:          60,
		},
		Vector: VectorConfig{
			EmbeddingDim:     1536,
			CollectionName:   "zerorag_chunks",
			QdrantURL:        "localhost:6334",
			HealthCheck:      true,
			BatchSize:        64,
			QueueCapacity:    1000,
			FailureThreshold: 3,
		},
		Chunking: ChunkingConfig{
			ChunkSize:            1000,
			ChunkOverlap:         200,
			MaxFileSize:          10 * 1024 * 1024,
			SupportedFormats:     []string{".txt", ".md", ".csv"},
			MaxChunksPerDocument: 1000,
			EmbeddingBatchSize:   32,
		},
		RAG: RAGConfig{
			TopKDefault:             5,
			ScoreThresholdDefault:   0.3,
			MaxContextLengthDefault: 4000,
			QueryTimeoutSeconds:     60,
			UploadTimeoutSeconds:    300,
		},
		Memory: MemoryConfig{
			ThresholdMB:           512,
			CriticalThresholdMB:   1024,
			SampleIntervalSeconds: 5,
			GCIntervalSeconds:     60,
			AlertHistorySize:      100,
		},
		Cache: CacheConfig{
			MaxSize: 1000,
			TTL:     24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: true},
		Models: ModelConfig{
			EmbedderEndpoint:  "http://localhost:8081/embed",
			GeneratorEndpoint: "http://localhost:8082/generate",
		},
		DataDir: "./data",
	}
}

// Load builds a Config from an optional config.yaml overlay, an optional
// .env file, and environment overrides, in that precedence order (env wins).
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ZERORAG_CONFIG_FILE"); path != "" {
		if err := mergeYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	} else if data, err := os.ReadFile("config.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing config.yaml: %w", err)
		}
	}

	_ = godotenv.Load() // optional; missing .env is not an error

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "ZERORAG_SERVER_HOST")
	setInt(&cfg.Server.Port, "ZERORAG_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ZERORAG_CORS_ORIGINS")
	setString(&cfg.Server.APIKey, "ZERORAG_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "ZERORAG_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.Server.UploadRateLimitPerMinute, "ZERORAG_UPLOAD_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.Server.StreamConnectionTimeoutMinutes, "ZERORAG_STREAM_TIMEOUT_MINUTES")
	setInt(&cfg.Server.RequestTimeoutSeconds, "ZERORAG_REQUEST_TIMEOUT_SECONDS")

	setInt(&cfg.Vector.EmbeddingDim, "ZERORAG_EMBEDDING_DIM")
	setString(&cfg.Vector.CollectionName, "ZERORAG_COLLECTION_NAME")
	setString(&cfg.Vector.QdrantURL, "ZERORAG_QDRANT_URL")
	setString(&cfg.Vector.QdrantAPIKey, "ZERORAG_QDRANT_API_KEY")
	setBool(&cfg.Vector.HealthCheck, "ZERORAG_QDRANT_HEALTH_CHECK")
	setInt(&cfg.Vector.BatchSize, "ZERORAG_BATCH_SIZE")
	setInt(&cfg.Vector.QueueCapacity, "ZERORAG_QUEUE_CAPACITY")
	setInt(&cfg.Vector.FailureThreshold, "ZERORAG_FAILURE_THRESHOLD")

	setInt(&cfg.Chunking.ChunkSize, "ZERORAG_CHUNK_SIZE")
	setInt(&cfg.Chunking.ChunkOverlap, "ZERORAG_CHUNK_OVERLAP")
	setInt64(&cfg.Chunking.MaxFileSize, "ZERORAG_MAX_FILE_SIZE")
	setStringSlice(&cfg.Chunking.SupportedFormats, "ZERORAG_SUPPORTED_FORMATS")
	setInt(&cfg.Chunking.MaxChunksPerDocument, "ZERORAG_MAX_CHUNKS_PER_DOCUMENT")
	setInt(&cfg.Chunking.EmbeddingBatchSize, "ZERORAG_EMBEDDING_BATCH_SIZE")

	setInt(&cfg.RAG.TopKDefault, "ZERORAG_TOP_K_DEFAULT")
	setFloat(&cfg.RAG.ScoreThresholdDefault, "ZERORAG_SCORE_THRESHOLD_DEFAULT")
	setInt(&cfg.RAG.MaxContextLengthDefault, "ZERORAG_MAX_CONTEXT_LENGTH_DEFAULT")
	setInt(&cfg.RAG.QueryTimeoutSeconds, "ZERORAG_QUERY_TIMEOUT_SECONDS")
	setInt(&cfg.RAG.UploadTimeoutSeconds, "ZERORAG_UPLOAD_TIMEOUT_SECONDS")

	setInt(&cfg.Memory.ThresholdMB, "ZERORAG_MEMORY_THRESHOLD_MB")
	setInt(&cfg.Memory.CriticalThresholdMB, "ZERORAG_MEMORY_CRITICAL_THRESHOLD_MB")
	setInt(&cfg.Memory.SampleIntervalSeconds, "ZERORAG_MEMORY_SAMPLE_INTERVAL_SECONDS")
	setInt(&cfg.Memory.GCIntervalSeconds, "ZERORAG_GC_INTERVAL_SECONDS")
	setInt(&cfg.Memory.AlertHistorySize, "ZERORAG_MEMORY_ALERT_HISTORY_SIZE")

	setInt(&cfg.Cache.MaxSize, "ZERORAG_CACHE_MAX_SIZE")
	setDuration(&cfg.Cache.TTL, "ZERORAG_CACHE_TTL")
	setString(&cfg.Cache.RedisURL, "ZERORAG_REDIS_URL")

	setString(&cfg.Logging.Level, "ZERORAG_LOG_LEVEL")
	setBool(&cfg.Logging.JSON, "ZERORAG_LOG_JSON")

	setString(&cfg.Models.EmbedderEndpoint, "ZERORAG_EMBEDDER_ENDPOINT")
	setString(&cfg.Models.EmbedderAPIKey, "ZERORAG_EMBEDDER_API_KEY")
	setString(&cfg.Models.GeneratorEndpoint, "ZERORAG_GENERATOR_ENDPOINT")
	setString(&cfg.Models.GeneratorAPIKey, "ZERORAG_GENERATOR_API_KEY")

	setString(&cfg.DataDir, "ZERORAG_DATA_DIR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate checks the configuration invariants, returning a
// precise error on the first violation found.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateVector(); err != nil {
		return err
	}
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateRAG(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if c.Models.EmbedderEndpoint == "" {
		return fmt.Errorf("config: embedder_endpoint must be set")
	}
	if c.Models.GeneratorEndpoint == "" {
		return fmt.Errorf("config: generator_endpoint must be set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range [1,65535]", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: rate_limit_per_minute must be positive, got %d", c.Server.RateLimitPerMinute)
	}
	if c.Server.UploadRateLimitPerMinute <= 0 {
		return fmt.Errorf("config: upload_rate_limit_per_minute must be positive, got %d", c.Server.UploadRateLimitPerMinute)
	}
	if c.Server.StreamConnectionTimeoutMinutes <= 0 {
		return fmt.Errorf("config: stream_connection_timeout_minutes must be positive, got %d", c.Server.StreamConnectionTimeoutMinutes)
	}
	return nil
}

func (c *Config) validateVector() error {
	if c.Vector.EmbeddingDim <= 0 {
		return fmt.Errorf("config: embedding_dim must be positive, got %d", c.Vector.EmbeddingDim)
	}
	if c.Vector.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Vector.BatchSize)
	}
	if c.Vector.QueueCapacity <= 0 {
		return fmt.Errorf("config: queue_capacity must be positive, got %d", c.Vector.QueueCapacity)
	}
	if c.Vector.FailureThreshold <= 0 {
		return fmt.Errorf("config: failure_threshold must be positive, got %d", c.Vector.FailureThreshold)
	}
	return nil
}

func (c *Config) validateChunking() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("config: chunk_overlap cannot be negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("config: chunk_overlap (%d) must be less than chunk_size (%d)", c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Chunking.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive, got %d", c.Chunking.MaxFileSize)
	}
	if c.Chunking.MaxChunksPerDocument <= 0 {
		return fmt.Errorf("config: max_chunks_per_document must be positive, got %d", c.Chunking.MaxChunksPerDocument)
	}
	if len(c.Chunking.SupportedFormats) == 0 {
		return fmt.Errorf("config: supported_formats cannot be empty")
	}
	return nil
}

func (c *Config) validateRAG() error {
	if c.RAG.TopKDefault < 1 || c.RAG.TopKDefault > 20 {
		return fmt.Errorf("config: top_k_default must be between 1 and 20, got %d", c.RAG.TopKDefault)
	}
	if c.RAG.ScoreThresholdDefault < 0 || c.RAG.ScoreThresholdDefault > 1 {
		return fmt.Errorf("config: score_threshold_default must be between 0 and 1, got %f", c.RAG.ScoreThresholdDefault)
	}
	if c.RAG.MaxContextLengthDefault < 1000 || c.RAG.MaxContextLengthDefault > 8000 {
		return fmt.Errorf("config: max_context_length_default must be between 1000 and 8000, got %d", c.RAG.MaxContextLengthDefault)
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.ThresholdMB <= 0 {
		return fmt.Errorf("config: memory_threshold_mb must be positive, got %d", c.Memory.ThresholdMB)
	}
	if c.Memory.CriticalThresholdMB <= c.Memory.ThresholdMB {
		return fmt.Errorf("config: memory_critical_threshold_mb (%d) must exceed memory_threshold_mb (%d)", c.Memory.CriticalThresholdMB, c.Memory.ThresholdMB)
	}
	if c.Memory.SampleIntervalSeconds <= 0 {
		return fmt.Errorf("config: memory_sample_interval_seconds must be positive, got %d", c.Memory.SampleIntervalSeconds)
	}
	if c.Memory.GCIntervalSeconds <= 0 {
		return fmt.Errorf("config: gc_interval_seconds must be positive, got %d", c.Memory.GCIntervalSeconds)
	}
	if c.Memory.AlertHistorySize <= 0 {
		return fmt.Errorf("config: memory_alert_history_size must be positive, got %d", c.Memory.AlertHistorySize)
	}
	return nil
}
