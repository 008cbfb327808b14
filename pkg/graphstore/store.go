// Package graphstore defines the knowledge-graph persistence contract
// used by the graph-traversal search strategy and by entity/relationship
// extraction during consolidation. There is no graph-database driver in
// the example pack, so this is a new interface grounded on the shape of
// the teacher's storage.VectorStore (CRUD + a bounded query operation)
// applied to graph entities instead of vectors.
package graphstore

import (
	"context"

	"github.com/oceanbase/agentmem/pkg/graph"
)

// Store persists and traverses a tenant-scoped property graph.
type Store interface {
	// UpsertNode creates or replaces a node.
	UpsertNode(ctx context.Context, node graph.Node) error

	// UpsertEdge creates or replaces a directed edge. Both endpoints must
	// already exist as nodes.
	UpsertEdge(ctx context.Context, edge graph.Edge) error

	// Neighbors performs a bounded breadth-first traversal from seed
	// nodes out to maxDepth hops, returning every reached node at most
	// once with the accumulated multi-path bonus.
	Neighbors(ctx context.Context, tenantID string, seeds []string, maxDepth int, dir graph.Direction) ([]graph.Neighbor, error)

	// Subgraph materializes the nodes and edges reachable from seeds
	// within maxDepth hops.
	Subgraph(ctx context.Context, tenantID string, seeds []string, maxDepth int) (graph.Subgraph, error)

	// DeleteNode removes a node and every edge touching it.
	DeleteNode(ctx context.Context, tenantID, nodeID string) error

	// DeleteTenant removes every node and edge belonging to tenantID.
	DeleteTenant(ctx context.Context, tenantID string) error

	Close() error
}
