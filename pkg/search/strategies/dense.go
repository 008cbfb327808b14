package strategies

import (
	"context"
	"fmt"

	"github.com/oceanbase/agentmem/pkg/embedder"
	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
)

// DenseDefaultWeight mirrors vector.py's default_weight=1.0.
const DenseDefaultWeight = 1.0

// DefaultVectorSpace is the embedding space name used when a request
// doesn't specify one (the single-space common case).
const DefaultVectorSpace = "default"

// Dense is plain dense-vector similarity search: embed the query, search
// a single named vector space, return the matches.
type Dense struct {
	VectorStore vectorstore.Store
	Embedder    embedder.Provider
}

// Name implements search.Strategy.
func (d *Dense) Name() string { return "dense" }

// DefaultWeight implements search.Strategy.
func (d *Dense) DefaultWeight() float64 { return DenseDefaultWeight }

// Run implements search.Strategy. Uses req.QueryEmbedding if the caller
// already computed one (avoids a redundant embed call across strategies
// that all need the same query vector); otherwise embeds req.Query with
// embedder.TaskQuery, matching vector.py's task_type="search_query".
func (d *Dense) Run(ctx context.Context, req search.StrategyRequest) ([]search.Hit, error) {
	queryVec := req.QueryEmbedding
	if len(queryVec) == 0 {
		if req.Query == "" {
			return nil, nil
		}
		vec, err := d.Embedder.Embed(ctx, req.Query, embedder.TaskQuery)
		if err != nil {
			return nil, fmt.Errorf("strategies.Dense: embed query: %w", err)
		}
		queryVec = vec
	}

	space := req.VectorSpace
	if space == "" {
		space = DefaultVectorSpace
	}

	matches, err := d.VectorStore.Search(ctx, req.TenantID, space, queryVec, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("strategies.Dense: %w", err)
	}

	hits := make([]search.Hit, len(matches))
	for i, m := range matches {
		hits[i] = search.Hit{MemoryID: m.RecordID, Score: m.Score}
	}
	return hits, nil
}

var _ search.Strategy = (*Dense)(nil)
