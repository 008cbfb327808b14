// Package memvec is an in-process reference implementation of
// vectorstore.Store, computing cosine similarity by full scan. It plays
// the same role the teacher's SQLite client plays for VectorStore: a
// correctness-first backend with no external index, suitable for tests
// and small deployments, ADR'd in DESIGN.md as the default dev backend
// since the module carries no vector-database driver in its dependency
// pack.
package memvec

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/scoring"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
)

type spaceKey struct {
	tenantID string
	space    string
}

// Store is a mutex-guarded in-memory vectorstore.Store.
type Store struct {
	mu     sync.RWMutex
	spaces map[spaceKey]map[uuid.UUID][]float32
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{spaces: make(map[spaceKey]map[uuid.UUID][]float32)}
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, tenantID, space string, recordID uuid.UUID, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := spaceKey{tenantID, space}
	bucket, ok := s.spaces[key]
	if !ok {
		bucket = make(map[uuid.UUID][]float32)
		s.spaces[key] = bucket
	}
	if existing, ok := bucket[recordID]; ok && len(existing) != len(vector) {
		return memory.WrapOp("memvec.Upsert", memory.ErrDimensionMismatch)
	}
	cp := append([]float32(nil), vector...)
	bucket[recordID] = cp
	return nil
}

// Search implements vectorstore.Store.
func (s *Store) Search(ctx context.Context, tenantID, space string, query []float32, topK int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.spaces[spaceKey{tenantID, space}]
	queryF64 := toFloat64(query)

	matches := make([]vectorstore.Match, 0, len(bucket))
	for id, vec := range bucket {
		sim := scoring.CosineSimilarity(queryF64, toFloat64(vec))
		matches = append(matches, vectorstore.Match{RecordID: id, Score: sim})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete implements vectorstore.Store.
func (s *Store) Delete(ctx context.Context, tenantID, space string, recordID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.spaces[spaceKey{tenantID, space}]; ok {
		delete(bucket, recordID)
	}
	return nil
}

// DeleteTenant implements vectorstore.Store.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.spaces {
		if key.tenantID == tenantID {
			delete(s.spaces, key)
		}
	}
	return nil
}

// Dimensions implements vectorstore.Store.
func (s *Store) Dimensions(ctx context.Context, tenantID, space string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vec := range s.spaces[spaceKey{tenantID, space}] {
		return len(vec), nil
	}
	return 0, nil
}

// Close implements vectorstore.Store.
func (s *Store) Close() error {
	return nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

var _ vectorstore.Store = (*Store)(nil)
