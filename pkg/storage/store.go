// Package storage defines the persistence-layer contract every backend
// (SQLite, and in production OceanBase/Postgres/MySQL) must satisfy. It
// generalizes the teacher's VectorStore interface from a single flat
// key-value/vector table into full-record CRUD plus layer/tenant-scoped
// listing, since the memory hierarchy needs to query by layer and tenant
// independently of vector similarity (vector search itself lives in
// pkg/vectorstore).
package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/oceanbase/agentmem/pkg/memory"
)

// ListOptions scopes and paginates a listing or bulk-delete operation.
// All fields are optional filters; zero values mean "no filter".
type ListOptions struct {
	TenantID string
	Project  string
	AgentID  string
	Layer    memory.Layer
	Tags     []string
	Limit    int
	Offset   int
}

// AccessScope restricts an operation to records visible to a given
// tenant/agent pair, mirroring the teacher's per-call UserID/AgentID
// options but applied uniformly to every single-record operation.
type AccessScope struct {
	TenantID string
	AgentID  string
}

// Store is the persistence contract for memory records. Implementations
// must be safe for concurrent use.
type Store interface {
	// Insert persists a new record. The record's ID must already be set.
	Insert(ctx context.Context, rec *memory.Record) error

	// Get retrieves a record by ID. scope, if non-zero, restricts the
	// lookup to records owned by the named tenant/agent; a record that
	// exists but fails the scope check returns memory.ErrNotFound, never
	// memory.ErrAccessDenied, so existence is never leaked across tenants.
	Get(ctx context.Context, id uuid.UUID, scope AccessScope) (*memory.Record, error)

	// Update replaces the stored record with rec in full (last-write-wins
	// at the record level; callers compose read-modify-write themselves).
	Update(ctx context.Context, rec *memory.Record, scope AccessScope) error

	// Delete removes a record by ID.
	Delete(ctx context.Context, id uuid.UUID, scope AccessScope) error

	// List returns records matching opts, ordered by created_at descending.
	List(ctx context.Context, opts ListOptions) ([]*memory.Record, error)

	// Count returns the number of records matching opts without
	// materializing them, used by quota checks and statistics.
	Count(ctx context.Context, opts ListOptions) (int64, error)

	// DeleteMatching bulk-deletes every record matching opts and returns
	// the number removed. Used by retention sweeps and GDPR erasure.
	DeleteMatching(ctx context.Context, opts ListOptions) (int64, error)

	// FullTextSearch returns records in opts's scope whose content
	// contains query (case-insensitive substring match), ordered by a
	// simple occurrence-count relevance score descending. Backs the
	// Sparse and Anchor search strategies, which need a text-relevance
	// primitive distinct from vector similarity.
	FullTextSearch(ctx context.Context, opts ListOptions, query string) ([]*memory.Record, error)

	// DistinctTenantIDs returns every tenant ID with at least one record,
	// the primitive maintenance workers use to discover their own
	// iteration scope when the caller doesn't supply an explicit tenant
	// list.
	DistinctTenantIDs(ctx context.Context) ([]string, error)

	// Close releases any held resources (connections, file handles).
	Close() error
}
