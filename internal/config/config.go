package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	defaultPort         = 8080
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	defaultSeparator    = "\n\n"
	defaultDimension    = 384
	defaultTopK         = 5
	defaultTimeout      = 60
)

type Config struct {
	Port          int               `json:"port"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	QueryInterval int               `json:"query_interval_ms"`
	MaxUploadSize int64             `json:"max_upload_size"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Cleaner       CleanerConfig     `json:"cleaner"`
	Chunker       ChunkerConfig     `json:"chunker"`
	Embedding     EmbeddingConfig   `json:"embedding"`
	Generation    GenerationConfig  `json:"generation"`
	Retrieval     RetrievalConfig   `json:"retrieval"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	Source        SourceConfig      `json:"source"`
	Database      DatabaseConfig    `json:"database"`
	Jobs          JobsConfig        `json:"jobs"`
}

type CleanerConfig struct {
	StripHTML     bool `json:"strip_html"`
	RemoveControl bool `json:"remove_control"`
}

type ChunkerConfig struct {
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap *int   `json:"chunk_overlap"`
	Separator    string `json:"separator"`
}

func (c ChunkerConfig) Overlap() int {
	if c.ChunkOverlap == nil {
		return defaultChunkOverlap
	}
	return *c.ChunkOverlap
}

// ProviderConfig selects a model provider. Data carries provider specific
// settings such as api_key, base_url or region.
type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type EmbeddingConfig struct {
	ProviderConfig
	Dimension int                  `json:"dimension"`
	Fallback  []ProviderConfig     `json:"fallback"`
	Cache     EmbeddingCacheConfig `json:"cache"`
}

type EmbeddingCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DB            bool `json:"db"`
}

type GenerationConfig struct {
	ProviderConfig
	Fallback []ProviderConfig `json:"fallback"`
	Timeout  int              `json:"timeout"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k"`
}

type VectorStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type SourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"`
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type JobsConfig struct {
	CacheCleanupSpec    string `json:"cache_cleanup_spec"`
	CacheRetentionHours int    `json:"cache_retention_hours"`
	SourceSyncSpec      string `json:"source_sync_spec"`
	SourceSyncPrefix    string `json:"source_sync_prefix"`
}

// Load reads a json or yaml config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config that runs entirely in process.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.normalize()
	return cfg
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return json.Marshal(doc)
}

func (c *Config) normalize() error {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Chunker.ChunkSize == 0 {
		c.Chunker.ChunkSize = defaultChunkSize
	}
	if c.Chunker.ChunkOverlap == nil {
		overlap := defaultChunkOverlap
		c.Chunker.ChunkOverlap = &overlap
	}
	if c.Chunker.Separator == "" {
		c.Chunker.Separator = defaultSeparator
	}
	if c.Chunker.ChunkSize < 0 || c.Chunker.Overlap() < 0 {
		return fmt.Errorf("%w: chunker sizes must be positive", appErr.ErrConfiguration)
	}
	if c.Chunker.Overlap() >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunker.chunk_overlap must be less than chunker.chunk_size", appErr.ErrConfiguration)
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "mock"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = defaultDimension
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("%w: embedding.dimension must be positive", appErr.ErrConfiguration)
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "mock"
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = defaultTimeout
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = defaultTopK
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "memory"
	}
	switch c.VectorStore.Type {
	case "memory", "dynamodb":
	case "sql":
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: vector_store.type must be memory, sql or dynamodb", appErr.ErrConfiguration)
	}
	if c.Embedding.Cache.DB {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}
	switch c.Source.Type {
	case "", "local", "s3":
	default:
		return fmt.Errorf("%w: source.type must be local or s3", appErr.ErrConfiguration)
	}
	if c.Jobs.CacheRetentionHours <= 0 {
		c.Jobs.CacheRetentionHours = 24 * 30
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	switch d.Driver {
	case "postgres":
		if d.DSN == "" && d.Host == "" {
			return fmt.Errorf("%w: database.dsn or database.host is required", appErr.ErrConfiguration)
		}
	case "sqlite":
		if d.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for sqlite", appErr.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: database.driver must be postgres or sqlite", appErr.ErrConfiguration)
	}
	return nil
}
