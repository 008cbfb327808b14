package strategies

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/graph"
	"github.com/oceanbase/agentmem/pkg/graphstore"
	"github.com/oceanbase/agentmem/pkg/search"
)

// GraphDefaultWeight mirrors graph.py's default_weight=0.5.
const GraphDefaultWeight = 0.5

// GraphMaxDepth is the traversal bound graph.py hardcodes (max_depth=2).
const GraphMaxDepth = 2

// Graph traverses the knowledge graph from a seed set of memory IDs and
// returns their neighbors, each weighted by the multi-path bonus
// graphstore.Store.Neighbors accumulates.
type Graph struct {
	Store graphstore.Store
}

// Name implements search.Strategy.
func (g *Graph) Name() string { return "graph" }

// DefaultWeight implements search.Strategy.
func (g *Graph) DefaultWeight() float64 { return GraphDefaultWeight }

// Run implements search.Strategy. Returns no results (not an error) when
// the request carries no seed IDs to traverse from — graph.py's
// equivalent early-return.
func (g *Graph) Run(ctx context.Context, req search.StrategyRequest) ([]search.Hit, error) {
	if len(req.SeedIDs) == 0 {
		return nil, nil
	}
	seeds := make([]string, len(req.SeedIDs))
	for i, id := range req.SeedIDs {
		seeds[i] = id.String()
	}

	neighbors, err := g.Store.Neighbors(ctx, req.TenantID, seeds, GraphMaxDepth, graph.DirBoth)
	if err != nil {
		return nil, fmt.Errorf("strategies.Graph: %w", err)
	}

	hits := make([]search.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		id, err := uuid.Parse(n.NodeID)
		if err != nil {
			// Not every graph node corresponds to a memory record (some
			// are extracted entities); skip those rather than failing
			// the whole traversal.
			continue
		}
		hits = append(hits, search.Hit{MemoryID: id, Score: n.Bonus})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	return hits, nil
}

var _ search.Strategy = (*Graph)(nil)
