package engine

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/oceanbase/agentmem/pkg/memory"
)

// StorageConfig selects and configures the persistence backend.
// Provider selects "sqlite" (default, single-file), "postgres", or
// "oceanbase" — the latter two generalized from the teacher's
// pkg/storage/{postgres,oceanbase} embedding-search clients into full
// storage.Store implementations of this tree's memory.Record schema.
type StorageConfig struct {
	Provider string
	DBPath   string // sqlite

	// Host/Port/User/Password/DBName/SSLMode configure the postgres and
	// oceanbase providers; SSLMode applies to postgres only.
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// VectorStoreConfig selects the vector-similarity backend. Provider
// "memory" is the only one implemented today (pkg/vectorstore/memvec);
// it is the reference adapter SPEC_FULL.md names as a real component.
type VectorStoreConfig struct {
	Provider string
}

// GraphStoreConfig selects the knowledge-graph backend.
type GraphStoreConfig struct {
	Provider string
}

// CacheConfig selects the query/embedding cache backend.
type CacheConfig struct {
	Provider      string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LLMConfig selects and configures the LLM provider used for
// consolidation synthesis, reflection, summarization, and entity
// extraction.
type LLMConfig struct {
	Provider string // openai | anthropic | ollama | deepseek | qwen
	APIKey   string
	Model    string
	BaseURL  string
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider   string // openai | qwen
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// Config is the engine's full dependency configuration, mirroring the
// teacher's core.Config provider-switch shape (pkg/core/config.go)
// generalized from one vector store + one LLM + one embedder to the
// six adapters this spec names.
type Config struct {
	Storage     StorageConfig
	VectorStore VectorStoreConfig
	GraphStore  GraphStoreConfig
	Cache       CacheConfig
	LLM         LLMConfig
	Embedder    EmbedderConfig

	// ConsistencyMode controls whether a vector-store write failure
	// after a successful storage write fails the call (Strict) or is
	// merely logged (the default), per spec.md §7.
	ConsistencyMode ConsistencyMode
}

// ConsistencyMode governs cross-adapter write-failure propagation.
type ConsistencyMode int

const (
	// ConsistencyLenient logs a secondary-adapter write failure (e.g.
	// the vector index) and returns success if the primary storage
	// write succeeded.
	ConsistencyLenient ConsistencyMode = iota
	// ConsistencyStrict fails the call if any adapter write fails.
	ConsistencyStrict
)

// Validate checks the configuration is complete enough to construct an
// Engine, mirroring core.Config.Validate's pattern of provider-specific
// required-field checks.
func (c *Config) Validate() error {
	if c.Storage.Provider == "" {
		c.Storage.Provider = "sqlite"
	}
	if c.Storage.Provider == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("%w: storage.db_path is required for the sqlite provider", memory.ErrInvalidConfig)
	}
	if (c.Storage.Provider == "postgres" || c.Storage.Provider == "oceanbase") && c.Storage.DBName == "" {
		return fmt.Errorf("%w: storage.db_name is required for the %s provider", memory.ErrInvalidConfig, c.Storage.Provider)
	}
	if c.VectorStore.Provider == "" {
		c.VectorStore.Provider = "memory"
	}
	if c.GraphStore.Provider == "" {
		c.GraphStore.Provider = "memory"
	}
	if c.Cache.Provider == "" {
		c.Cache.Provider = "memory"
	}
	if c.Cache.Provider == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: cache.redis_addr is required for the redis provider", memory.ErrInvalidConfig)
	}
	switch c.LLM.Provider {
	case "", "openai", "anthropic", "ollama", "deepseek", "qwen":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", memory.ErrInvalidConfig, c.LLM.Provider)
	}
	switch c.Embedder.Provider {
	case "", "openai", "qwen":
	default:
		return fmt.Errorf("%w: unknown embedder provider %q", memory.ErrInvalidConfig, c.Embedder.Provider)
	}
	return nil
}

// LoadConfigFromEnv builds a Config from environment variables (loading
// a .env file first, if present), mirroring the teacher's
// LoadConfigFromEnv/godotenv pattern (pkg/core/config.go).
func LoadConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))
	redisDB, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	dbPort, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))

	cfg := &Config{
		Storage: StorageConfig{
			Provider: getEnvOrDefault("STORAGE_PROVIDER", "sqlite"),
			DBPath:   getEnvOrDefault("SQLITE_PATH", "./agentmem.db"),
			Host:     os.Getenv("DB_HOST"),
			Port:     dbPort,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		VectorStore: VectorStoreConfig{Provider: getEnvOrDefault("VECTOR_STORE_PROVIDER", "memory")},
		GraphStore:  GraphStoreConfig{Provider: getEnvOrDefault("GRAPH_STORE_PROVIDER", "memory")},
		Cache: CacheConfig{
			Provider:      getEnvOrDefault("CACHE_PROVIDER", "memory"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,
		},
		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
		Embedder: EmbedderConfig{
			Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
