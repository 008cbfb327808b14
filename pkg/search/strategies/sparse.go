package strategies

import (
	"context"
	"fmt"

	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// SparseDefaultWeight mirrors sparse.py's default_weight=0.7.
const SparseDefaultWeight = 0.7

// Sparse is a BM25-flavored keyword-relevance strategy that delegates
// straight to the storage backend's full-text search, same thin
// delegation shape as sparse.py (which is itself a placeholder the
// production system backs with a real BM25 index — this module backs
// it with storage.Store.FullTextSearch instead of leaving it unbuilt).
type Sparse struct {
	Store storage.Store
}

// Name implements search.Strategy.
func (s *Sparse) Name() string { return "sparse" }

// DefaultWeight implements search.Strategy.
func (s *Sparse) DefaultWeight() float64 { return SparseDefaultWeight }

// Run implements search.Strategy.
func (s *Sparse) Run(ctx context.Context, req search.StrategyRequest) ([]search.Hit, error) {
	if req.Query == "" {
		return nil, nil
	}
	results, err := s.Store.FullTextSearch(ctx, storage.ListOptions{
		TenantID: req.TenantID, Project: req.Project, AgentID: req.AgentID,
		Layer: req.Layer, Tags: req.Tags, Limit: req.Limit,
	}, req.Query)
	if err != nil {
		return nil, fmt.Errorf("strategies.Sparse: %w", err)
	}

	hits := make([]search.Hit, len(results))
	n := len(results)
	for i, rec := range results {
		// FullTextSearch already returns relevance-descending order;
		// assign a synthetic decreasing score so fusion has something
		// numeric to rank on, same role sparse.py's BM25 score plays.
		hits[i] = search.Hit{MemoryID: rec.ID, Score: float64(n-i) / float64(n), Importance: rec.Importance}
	}
	return hits, nil
}

var _ search.Strategy = (*Sparse)(nil)
