// Package memgraph is an in-process reference implementation of
// graphstore.Store, holding the tenant-scoped property graph as plain
// adjacency maps guarded by a mutex — the same correctness-first,
// full-scan posture as vectorstore/memvec.
package memgraph

import (
	"context"
	"sync"

	"github.com/oceanbase/agentmem/pkg/graph"
	"github.com/oceanbase/agentmem/pkg/graphstore"
)

type edgeKey struct {
	tenantID string
	source   string
	target   string
	relation string
}

// Store is a mutex-guarded in-memory graphstore.Store.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]map[string]graph.Node // tenantID -> nodeID -> Node
	out   map[string]map[string][]graph.Edge
	in    map[string]map[string][]graph.Edge
}

// New returns an empty in-memory graph store.
func New() *Store {
	return &Store{
		nodes: make(map[string]map[string]graph.Node),
		out:   make(map[string]map[string][]graph.Edge),
		in:    make(map[string]map[string][]graph.Edge),
	}
}

// UpsertNode implements graphstore.Store.
func (s *Store) UpsertNode(ctx context.Context, node graph.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.nodes[node.TenantID]
	if !ok {
		bucket = make(map[string]graph.Node)
		s.nodes[node.TenantID] = bucket
	}
	bucket[node.ID] = node
	return nil
}

// UpsertEdge implements graphstore.Store.
func (s *Store) UpsertEdge(ctx context.Context, edge graph.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out[edge.TenantID] == nil {
		s.out[edge.TenantID] = make(map[string][]graph.Edge)
	}
	if s.in[edge.TenantID] == nil {
		s.in[edge.TenantID] = make(map[string][]graph.Edge)
	}

	s.out[edge.TenantID][edge.Source] = replaceOrAppendEdge(s.out[edge.TenantID][edge.Source], edge)
	s.in[edge.TenantID][edge.Target] = replaceOrAppendEdge(s.in[edge.TenantID][edge.Target], edge)
	return nil
}

func replaceOrAppendEdge(edges []graph.Edge, e graph.Edge) []graph.Edge {
	for i, existing := range edges {
		if existing.Source == e.Source && existing.Target == e.Target && existing.Relation == e.Relation {
			edges[i] = e
			return edges
		}
	}
	return append(edges, e)
}

// Neighbors implements graphstore.Store: a bounded BFS that accumulates a
// multi-path bonus at every node, summing edge.Weight * 1/(1+depth) for
// every distinct path that reaches it, rewarding nodes reachable through
// more than one route from the seed set. Each edge is followed to its
// far endpoint (with DirBoth, incoming edges lead to their source); the
// seeds themselves are not reported.
func (s *Store) Neighbors(ctx context.Context, tenantID string, seeds []string, maxDepth int, dir graph.Direction) ([]graph.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]*graph.Neighbor)
	type frontierItem struct {
		nodeID string
		depth  int
	}

	visitedAtDepth := make(map[string]int)
	queue := make([]frontierItem, 0, len(seeds))
	seedSet := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		queue = append(queue, frontierItem{nodeID: seed, depth: 0})
		visitedAtDepth[seed] = 0
		seedSet[seed] = struct{}{}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		for _, e := range s.edgesFrom(tenantID, cur.nodeID, dir) {
			next := e.Target
			if next == cur.nodeID {
				next = e.Source
			}
			if _, isSeed := seedSet[next]; isSeed {
				continue
			}
			depth := cur.depth + 1
			bonus := e.Weight / float64(1+depth)

			if n, ok := seen[next]; ok {
				n.Bonus += bonus
				if depth < n.Depth {
					n.Depth = depth
				}
			} else {
				seen[next] = &graph.Neighbor{NodeID: next, Depth: depth, Bonus: bonus}
			}

			if prevDepth, visited := visitedAtDepth[next]; !visited || depth < prevDepth {
				visitedAtDepth[next] = depth
				queue = append(queue, frontierItem{nodeID: next, depth: depth})
			}
		}
	}

	out := make([]graph.Neighbor, 0, len(seen))
	for _, n := range seen {
		out = append(out, *n)
	}
	return out, nil
}

func (s *Store) edgesFrom(tenantID, nodeID string, dir graph.Direction) []graph.Edge {
	var edges []graph.Edge
	if dir == graph.DirOut || dir == graph.DirBoth {
		edges = append(edges, s.out[tenantID][nodeID]...)
	}
	if dir == graph.DirIn || dir == graph.DirBoth {
		edges = append(edges, s.in[tenantID][nodeID]...)
	}
	return edges
}

// Subgraph implements graphstore.Store.
func (s *Store) Subgraph(ctx context.Context, tenantID string, seeds []string, maxDepth int) (graph.Subgraph, error) {
	neighbors, err := s.Neighbors(ctx, tenantID, seeds, maxDepth, graph.DirBoth)
	if err != nil {
		return graph.Subgraph{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodeSet := make(map[string]struct{})
	for _, seed := range seeds {
		nodeSet[seed] = struct{}{}
	}
	for _, n := range neighbors {
		nodeSet[n.NodeID] = struct{}{}
	}

	var nodes []graph.Node
	for id := range nodeSet {
		if node, ok := s.nodes[tenantID][id]; ok {
			nodes = append(nodes, node)
		}
	}

	var edges []graph.Edge
	for id := range nodeSet {
		for _, e := range s.out[tenantID][id] {
			if _, ok := nodeSet[e.Target]; ok {
				edges = append(edges, e)
			}
		}
	}

	return graph.Subgraph{Nodes: nodes, Edges: edges}, nil
}

// DeleteNode implements graphstore.Store.
func (s *Store) DeleteNode(ctx context.Context, tenantID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes[tenantID], nodeID)

	delete(s.out[tenantID], nodeID)
	delete(s.in[tenantID], nodeID)
	for id, edges := range s.out[tenantID] {
		s.out[tenantID][id] = removeEdgesTouching(edges, nodeID)
	}
	for id, edges := range s.in[tenantID] {
		s.in[tenantID][id] = removeEdgesTouching(edges, nodeID)
	}
	return nil
}

func removeEdgesTouching(edges []graph.Edge, nodeID string) []graph.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.Source != nodeID && e.Target != nodeID {
			out = append(out, e)
		}
	}
	return out
}

// DeleteTenant implements graphstore.Store.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, tenantID)
	delete(s.out, tenantID)
	delete(s.in, tenantID)
	return nil
}

// Close implements graphstore.Store.
func (s *Store) Close() error {
	return nil
}

var _ graphstore.Store = (*Store)(nil)
