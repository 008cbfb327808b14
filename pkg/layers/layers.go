// Package layers implements the four memory-hierarchy tiers
// (Sensory, Working, LongTerm, Reflective) as facades over
// pkg/storage.Store; no layer writes to a vector store. Each layer owns its own
// lifecycle rules (retention, promotion, consolidation) but shares a
// common Add/Get/Search/Cleanup/Count shape (LongTerm has AddMemory and
// List in place of Add and Search), grounded on
// original_source/rae-core/rae_core/layers/base.py's MemoryLayerBase.
package layers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// AddOption configures an Add call across all four layers, following the
// teacher's functional-options pattern (pkg/core/options.go).
type AddOption func(*AddOptions)

// AddOptions carries the optional fields an Add call may set.
type AddOptions struct {
	Tags       []string
	Metadata   map[string]interface{}
	Embedding  []float32
	Importance *float64
	SessionID  string
	MemoryType memory.Type
	InfoClass  memory.InfoClass
}

// WithTags attaches tags to the new memory.
func WithTags(tags ...string) AddOption {
	return func(o *AddOptions) { o.Tags = tags }
}

// WithMetadata attaches arbitrary metadata to the new memory.
func WithMetadata(md map[string]interface{}) AddOption {
	return func(o *AddOptions) { o.Metadata = md }
}

// WithEmbedding attaches a precomputed embedding to the new memory.
func WithEmbedding(v []float32) AddOption {
	return func(o *AddOptions) { o.Embedding = v }
}

// WithImportance overrides a layer's default importance for the new memory.
func WithImportance(importance float64) AddOption {
	return func(o *AddOptions) { o.Importance = &importance }
}

// WithSessionID tags the new memory with a session identifier.
func WithSessionID(sessionID string) AddOption {
	return func(o *AddOptions) { o.SessionID = sessionID }
}

// WithMemoryType overrides the default memory.Type of the new memory.
func WithMemoryType(t memory.Type) AddOption {
	return func(o *AddOptions) { o.MemoryType = t }
}

// WithInfoClass overrides the default information classification.
func WithInfoClass(c memory.InfoClass) AddOption {
	return func(o *AddOptions) { o.InfoClass = c }
}

func applyAddOptions(opts []AddOption) AddOptions {
	var o AddOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// base is embedded by every concrete layer. It carries the scope
// (tenant/project/agent) and the storage handle every layer delegates to,
// mirroring MemoryLayerBase's storage/tenant_id/agent_id fields.
type base struct {
	store     storage.Store
	tenantID  string
	project   string
	agentID   string
	layerName memory.Layer
}

func (b *base) scope() storage.AccessScope {
	return storage.AccessScope{TenantID: b.tenantID, AgentID: b.agentID}
}

// newRecord builds a Record pre-populated with this layer's scope and tag,
// and the caller-supplied options layered on top.
func (b *base) newRecord(content string, importance float64, opts AddOptions) *memory.Record {
	r := memory.NewRecord(b.tenantID, b.project, content)
	r.AgentID = b.agentID
	r.Layer = b.layerName
	r.Importance = importance
	if opts.SessionID != "" {
		r.SessionID = opts.SessionID
	}
	if opts.Tags != nil {
		r.Tags = opts.Tags
	}
	if opts.Metadata != nil {
		r.Metadata = opts.Metadata
	}
	if opts.Embedding != nil {
		r.Embedding = opts.Embedding
	}
	if opts.MemoryType != "" {
		r.MemoryType = opts.MemoryType
	}
	if opts.InfoClass != "" {
		r.InfoClass = opts.InfoClass
	}
	if opts.Importance != nil {
		r.Importance = *opts.Importance
	}
	return r
}

// Get fetches a memory by ID, scoped to this layer's tenant/agent, and
// touches its access bookkeeping — mirroring longterm.py's get_memory,
// which calls update_memory_access on every successful read.
func (b *base) Get(ctx context.Context, id uuid.UUID) (*memory.Record, error) {
	rec, err := b.store.Get(ctx, id, b.scope())
	if err != nil {
		return nil, err
	}
	rec.TouchAccess(time.Now().UTC())
	rec.UsageCount++
	if err := b.store.Update(ctx, rec, b.scope()); err != nil {
		return nil, fmt.Errorf("layers: touch access: %w", err)
	}
	return rec, nil
}

// Count returns the number of records currently held in this layer.
func (b *base) Count(ctx context.Context) (int64, error) {
	return b.store.Count(ctx, storage.ListOptions{
		TenantID: b.tenantID,
		Project:  b.project,
		AgentID:  b.agentID,
		Layer:    b.layerName,
	})
}

// Search lists records in this layer matching tags/limit, leaving
// relevance ranking to pkg/search — layers expose only the raw listing
// primitive search strategies are built on.
func (b *base) Search(ctx context.Context, tags []string, limit int) ([]*memory.Record, error) {
	return b.store.List(ctx, storage.ListOptions{
		TenantID: b.tenantID,
		Project:  b.project,
		AgentID:  b.agentID,
		Layer:    b.layerName,
		Tags:     tags,
		Limit:    limit,
	})
}

// Delete removes a memory from this layer.
func (b *base) Delete(ctx context.Context, id uuid.UUID) error {
	return b.store.Delete(ctx, id, b.scope())
}
