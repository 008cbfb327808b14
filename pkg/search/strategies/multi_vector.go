package strategies

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/embedder"
	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
)

// MultiVectorDefaultWeight mirrors multi_vector.py's default_weight=1.0.
const MultiVectorDefaultWeight = 1.0

// VectorSpace names one named embedding space and the provider that
// embeds queries into it (e.g. a "prose" space backed by a general
// embedding model, a "code" space backed by a code-specialized one).
type VectorSpace struct {
	Name     string
	Store    vectorstore.Store
	Embedder embedder.Provider
}

// MultiVector searches across several named vector spaces and merges
// results by maximum score per record. multi_vector.py's reference
// implementation only ever queries strategies_list[0]; this module
// queries every configured space instead, since a placeholder that
// silently drops every space but the first would defeat the point of
// having more than one.
type MultiVector struct {
	Spaces []VectorSpace
}

// Name implements search.Strategy.
func (m *MultiVector) Name() string { return "multi_vector" }

// DefaultWeight implements search.Strategy.
func (m *MultiVector) DefaultWeight() float64 { return MultiVectorDefaultWeight }

// Run implements search.Strategy.
func (m *MultiVector) Run(ctx context.Context, req search.StrategyRequest) ([]search.Hit, error) {
	if len(m.Spaces) == 0 || req.Query == "" {
		return nil, nil
	}

	best := make(map[uuid.UUID]float64)
	for _, space := range m.Spaces {
		vec, err := space.Embedder.Embed(ctx, req.Query, embedder.TaskQuery)
		if err != nil {
			return nil, fmt.Errorf("strategies.MultiVector: embed query for space %q: %w", space.Name, err)
		}
		matches, err := space.Store.Search(ctx, req.TenantID, space.Name, vec, req.Limit)
		if err != nil {
			return nil, fmt.Errorf("strategies.MultiVector: search space %q: %w", space.Name, err)
		}
		for _, match := range matches {
			if existing, ok := best[match.RecordID]; !ok || match.Score > existing {
				best[match.RecordID] = match.Score
			}
		}
	}

	hits := make([]search.Hit, 0, len(best))
	for id, score := range best {
		hits = append(hits, search.Hit{MemoryID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

var _ search.Strategy = (*MultiVector)(nil)
