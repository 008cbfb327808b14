// Package search implements the hybrid multi-strategy retrieval engine:
// intent analysis, concurrent strategy execution, Reciprocal Rank Fusion,
// and re-scoring via pkg/scoring; there is no LLM re-ranking step. Concrete
// strategies live in the sibling pkg/search/strategies package and are
// wired into an Engine by the caller (pkg/engine), keeping this package
// free of any dependency on storage/vectorstore/graphstore/embedder
// implementations — only the Strategy interface they satisfy.
package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
)

// Hit is one strategy's candidate result: a memory ID, a strategy-native
// relevance score, and importance carried along for later re-scoring.
type Hit struct {
	MemoryID   uuid.UUID
	Score      float64
	Importance float64
}

// StrategyRequest is the input every Strategy.Run receives. Not every
// field is meaningful to every strategy (SeedIDs only matters to Graph,
// QueryEmbedding only to Dense; MultiVector embeds the query itself).
type StrategyRequest struct {
	TenantID       string
	Project        string
	AgentID        string
	Query          string
	Layer          memory.Layer
	Tags           []string
	Limit          int
	SeedIDs        []uuid.UUID
	QueryEmbedding []float32
	VectorSpace    string
}

// Strategy is one retrieval method contributing a ranked candidate list
// to the hybrid fusion pipeline, grounded on
// original_source/rae-core/rae_core/search/strategies/__init__.py's
// SearchStrategy base class (search/get_strategy_name/get_strategy_weight).
type Strategy interface {
	// Name identifies the strategy for weighting, logging, and statistics.
	Name() string

	// DefaultWeight is the strategy's contribution to fusion when the
	// caller (or the intent analyzer) does not override it.
	DefaultWeight() float64

	// Run executes the strategy and returns candidates sorted by
	// strategy-native score descending.
	Run(ctx context.Context, req StrategyRequest) ([]Hit, error)
}
