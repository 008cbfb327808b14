// Package vectorstore defines the vector-similarity search contract
// used by the dense and multi-vector search strategies. It generalizes
// the teacher's VectorStore.Search into a named-space interface so a
// single backend can serve more than one embedding space (e.g. "default"
// and "code"), per the multi-vector strategy's independent-space design.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Metric is the distance/similarity function a space is indexed with.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricDot    Metric = "dot"
)

// Match is one result from a similarity search, identifying the record
// and its similarity score. memvec reports raw cosine similarity, which
// ranges over [-1,1]; pkg/scoring clamps a similarity into [0,1] before
// using it.
type Match struct {
	RecordID uuid.UUID
	Score    float64
}

// Store indexes per-tenant embedding spaces and serves approximate or
// exact similarity search over them.
type Store interface {
	// Upsert indexes or reindexes a record's embedding in the named
	// space. Space is typically "default"; multi-vector strategies use
	// additional named spaces such as "code" or "summary".
	Upsert(ctx context.Context, tenantID, space string, recordID uuid.UUID, vector []float32) error

	// Search returns the topK nearest neighbors to query in the named
	// space, scoped to tenantID.
	Search(ctx context.Context, tenantID, space string, query []float32, topK int) ([]Match, error)

	// Delete removes a record's vector from the named space.
	Delete(ctx context.Context, tenantID, space string, recordID uuid.UUID) error

	// DeleteTenant removes every vector belonging to tenantID across all
	// spaces, used by GDPR erasure cascades.
	DeleteTenant(ctx context.Context, tenantID string) error

	// Dimensions reports the established dimensionality of a space, or
	// 0 if the space has no vectors yet.
	Dimensions(ctx context.Context, tenantID, space string) (int, error)

	Close() error
}
