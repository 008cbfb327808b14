package engine

import (
	"context"
	"fmt"

	"github.com/oceanbase/agentmem/pkg/cache"
	"github.com/oceanbase/agentmem/pkg/cache/memcache"
	"github.com/oceanbase/agentmem/pkg/cache/redis"
	"github.com/oceanbase/agentmem/pkg/embedder"
	openaiEmbedder "github.com/oceanbase/agentmem/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/agentmem/pkg/embedder/qwen"
	"github.com/oceanbase/agentmem/pkg/graphstore"
	"github.com/oceanbase/agentmem/pkg/graphstore/memgraph"
	"github.com/oceanbase/agentmem/pkg/llm"
	anthropicLLM "github.com/oceanbase/agentmem/pkg/llm/anthropic"
	deepseekLLM "github.com/oceanbase/agentmem/pkg/llm/deepseek"
	ollamaLLM "github.com/oceanbase/agentmem/pkg/llm/ollama"
	openaiLLM "github.com/oceanbase/agentmem/pkg/llm/openai"
	qwenLLM "github.com/oceanbase/agentmem/pkg/llm/qwen"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
	"github.com/oceanbase/agentmem/pkg/storage/oceanbase"
	"github.com/oceanbase/agentmem/pkg/storage/postgres"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
	"github.com/oceanbase/agentmem/pkg/vectorstore/memvec"
)

// initStorage constructs the configured storage.Store, following the
// teacher's initStorage provider-switch (pkg/core/config.go).
func initStorage(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "", "sqlite":
		return sqlite.NewClient(sqlite.Config{DBPath: cfg.DBPath})
	case "postgres":
		return postgres.NewClient(postgres.Config{
			Host: cfg.Host, Port: cfg.Port, User: cfg.User,
			Password: cfg.Password, DBName: cfg.DBName, SSLMode: cfg.SSLMode,
		})
	case "oceanbase":
		return oceanbase.NewClient(oceanbase.Config{
			Host: cfg.Host, Port: cfg.Port, User: cfg.User,
			Password: cfg.Password, DBName: cfg.DBName,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}

// initVectorStore constructs the configured vectorstore.Store.
func initVectorStore(cfg VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return memvec.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}

// initGraphStore constructs the configured graphstore.Store.
func initGraphStore(cfg GraphStoreConfig) (graphstore.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return memgraph.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown graph store provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}

// initCache constructs the configured cache.Cache.
func initCache(cfg CacheConfig) (cache.Cache, error) {
	switch cfg.Provider {
	case "", "memory":
		return memcache.New(0), nil
	case "redis":
		return redis.New(context.Background(), redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	default:
		return nil, fmt.Errorf("%w: unknown cache provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}

// initLLM constructs the configured llm.Provider, following the
// teacher's initLLM provider-switch.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiLLM.NewClient(openaiLLM.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "anthropic":
		return anthropicLLM.NewClient(anthropicLLM.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "ollama":
		return ollamaLLM.NewClient(ollamaLLM.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "deepseek":
		return deepseekLLM.NewClient(deepseekLLM.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "qwen":
		return qwenLLM.NewClient(qwenLLM.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}

// initEmbedder constructs the configured embedder.Provider.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaiEmbedder.NewClient(openaiEmbedder.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Dimensions: cfg.Dimensions})
	case "qwen":
		return qwenEmbedder.NewClient(qwenEmbedder.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Dimensions: cfg.Dimensions})
	default:
		return nil, fmt.Errorf("%w: unknown embedder provider %q", memory.ErrInvalidConfig, cfg.Provider)
	}
}
