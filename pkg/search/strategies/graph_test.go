package strategies

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/graph"
	"github.com/oceanbase/agentmem/pkg/graphstore/memgraph"
	"github.com/oceanbase/agentmem/pkg/search"
)

func TestGraph_RunTraversesFromSeeds(t *testing.T) {
	store := memgraph.New()
	ctx := context.Background()

	seed := uuid.New()
	neighbor := uuid.New()
	require.NoError(t, store.UpsertNode(ctx, graph.Node{ID: seed.String(), TenantID: "tenant-1"}))
	require.NoError(t, store.UpsertNode(ctx, graph.Node{ID: neighbor.String(), TenantID: "tenant-1"}))
	require.NoError(t, store.UpsertEdge(ctx, graph.Edge{TenantID: "tenant-1", Source: seed.String(), Target: neighbor.String(), Relation: "relates_to", Weight: 1.0}))

	g := &Graph{Store: store}
	hits, err := g.Run(ctx, search.StrategyRequest{TenantID: "tenant-1", SeedIDs: []uuid.UUID{seed}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, neighbor, hits[0].MemoryID)
}

func TestGraph_NoSeedsReturnsEmpty(t *testing.T) {
	g := &Graph{Store: memgraph.New()}
	hits, err := g.Run(context.Background(), search.StrategyRequest{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
