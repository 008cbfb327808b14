// Package engine is the single entry point of agentmem: it wires the
// six adapters (storage, vector store, graph store, cache, embedder,
// LLM) together with pkg/layers, pkg/search, and pkg/governance behind
// one facade, grounded on the teacher's core.Client
// (pkg/core/memory.go) — a mutex-guarded struct holding adapter
// handles, constructed by a provider-switch initializer, exposing a
// small functional-options public API.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/cache"
	"github.com/oceanbase/agentmem/pkg/embedder"
	"github.com/oceanbase/agentmem/pkg/governance"
	"github.com/oceanbase/agentmem/pkg/graphstore"
	"github.com/oceanbase/agentmem/pkg/layers"
	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/search/strategies"
	"github.com/oceanbase/agentmem/pkg/storage"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
)

// Engine is agentmem's single entry point, mirroring the teacher's
// Client: public methods take ctx first and delegate to the configured
// adapters; Close holds mu while it releases them.
type Engine struct {
	config *Config

	store       storage.Store
	vectorStore vectorstore.Store
	graphStore  graphstore.Store
	cache       cache.Cache
	embedderP   embedder.Provider
	llmP        llm.Provider

	retention *governance.RetentionService
	eraser    *governance.Eraser
	audit     *governance.AuditLog

	searchEngine *search.Engine

	mu sync.RWMutex
}

// New constructs an Engine from the six adapters directly, for callers
// that build their own adapters (tests, or a host application wiring
// in a custom backend) rather than going through Config/provider
// switches.
func New(store storage.Store, vectorStore vectorstore.Store, graphStore graphstore.Store, c cache.Cache, embedderP embedder.Provider, llmP llm.Provider) *Engine {
	audit := governance.NewAuditLog(store)
	eng := &Engine{
		store:       store,
		vectorStore: vectorStore,
		graphStore:  graphStore,
		cache:       c,
		embedderP:   embedderP,
		llmP:        llmP,
		retention:   governance.NewRetentionService(store, audit),
		audit:       audit,
	}
	if graphStore != nil {
		eng.eraser = governance.NewEraser(store, vectorStore, graphStore, audit)
	} else {
		eng.eraser = governance.NewEraser(store, vectorStore, nil, audit)
	}
	eng.searchEngine = search.NewEngine(store, eng.buildStrategies())
	return eng
}

// NewEngine constructs an Engine from Config, initializing every
// adapter via the provider-switch functions in init.go — the direct
// analogue of the teacher's core.NewClient.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStorage(cfg.Storage)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}
	vectorStore, err := initVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}
	graphStore, err := initGraphStore(cfg.GraphStore)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}
	cacheP, err := initCache(cfg.Cache)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}
	llmP, err := initLLM(cfg.LLM)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}
	embedderP, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, memory.WrapOp("NewEngine", err)
	}

	eng := New(store, vectorStore, graphStore, cacheP, embedderP, llmP)
	eng.config = cfg
	return eng, nil
}

// buildStrategies wires the five concrete search.Strategy
// implementations over this Engine's adapters, the composition root
// that pkg/search itself cannot perform (to avoid the import cycle
// documented in pkg/search/types.go).
func (e *Engine) buildStrategies() []search.Strategy {
	strats := []search.Strategy{
		&strategies.Anchor{Store: e.store},
		&strategies.Sparse{Store: e.store},
	}
	if e.graphStore != nil {
		strats = append(strats, &strategies.Graph{Store: e.graphStore})
	}
	if e.vectorStore != nil && e.embedderP != nil {
		strats = append(strats, &strategies.Dense{VectorStore: e.vectorStore, Embedder: e.embedderP})
	}
	return strats
}

// Records exposes the underlying storage.Store, for callers composing
// their own operations on top of the engine (pkg/context's Builder
// fetches full records by ID from it; engine.Query alone only returns
// scored IDs).
func (e *Engine) Records() storage.Store {
	return e.store
}

// LLMProvider exposes the configured llm.Provider, or nil if none was
// configured. pkg/context's Builder uses it for CountTokens.
func (e *Engine) LLMProvider() llm.Provider {
	return e.llmP
}

// Close releases every adapter's held resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	closers := []func() error{}
	if e.store != nil {
		closers = append(closers, e.store.Close)
	}
	if e.vectorStore != nil {
		closers = append(closers, e.vectorStore.Close)
	}
	if e.graphStore != nil {
		closers = append(closers, e.graphStore.Close)
	}
	if e.cache != nil {
		closers = append(closers, e.cache.Close)
	}
	if e.embedderP != nil {
		closers = append(closers, e.embedderP.Close)
	}
	if e.llmP != nil {
		closers = append(closers, e.llmP.Close)
	}
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// layerImportanceHeuristic assigns a layer to a new memory when the
// caller doesn't specify one explicitly: high-importance content
// enters directly at a durable tier, ordinary content starts at the
// front of the hierarchy and earns promotion through use. Grounded on
// SPEC_FULL.md §4.F's "assigns a layer by importance heuristic when
// unspecified" — the exact thresholds are an Open-Question decision
// recorded in DESIGN.md (no original_source equivalent specifies them).
func layerImportanceHeuristic(importance float64) memory.Layer {
	switch {
	case importance >= 0.8:
		return memory.LayerEpisodic
	case importance >= 0.5:
		return memory.LayerWorking
	default:
		return memory.LayerSensory
	}
}

// StoreOptions carries Store's optional parameters.
type StoreOptions struct {
	Layer       memory.Layer
	Importance  *float64
	Tags        []string
	Metadata    map[string]interface{}
	SessionID   string
	MemoryType  memory.Type
	InfoClass   memory.InfoClass
	Governance  *governance.Input
	IsSemantic  bool
	SourceIDs   []uuid.UUID
}

// StoreOption configures a Store call.
type StoreOption func(*StoreOptions)

// WithLayer pins the destination layer rather than letting the
// importance heuristic choose one.
func WithLayer(l memory.Layer) StoreOption { return func(o *StoreOptions) { o.Layer = l } }

// WithImportance overrides the default importance for the new memory.
func WithImportance(importance float64) StoreOption {
	return func(o *StoreOptions) { o.Importance = &importance }
}

// WithTags attaches tags to the new memory.
func WithTags(tags ...string) StoreOption { return func(o *StoreOptions) { o.Tags = tags } }

// WithMetadata attaches arbitrary metadata to the new memory.
func WithMetadata(md map[string]interface{}) StoreOption {
	return func(o *StoreOptions) { o.Metadata = md }
}

// WithSessionID tags the new memory with a session identifier.
func WithSessionID(sessionID string) StoreOption {
	return func(o *StoreOptions) { o.SessionID = sessionID }
}

// WithMemoryType overrides the default memory.Type.
func WithMemoryType(t memory.Type) StoreOption { return func(o *StoreOptions) { o.MemoryType = t } }

// WithInfoClass overrides the default information classification.
func WithInfoClass(c memory.InfoClass) StoreOption {
	return func(o *StoreOptions) { o.InfoClass = c }
}

// WithGovernance attaches governance evidence for pkg/governance's
// auto-tagging rules (prompt_chain_length, routing confidence,
// tool-invocation token count, reflection confidence delta).
func WithGovernance(in governance.Input) StoreOption {
	return func(o *StoreOptions) { o.Governance = &in }
}

// WithSemantic routes a LongTerm-layer write to the semantic sub-layer
// instead of episodic; ignored for every other layer.
func WithSemantic() StoreOption { return func(o *StoreOptions) { o.IsSemantic = true } }

// Store persists a new memory, enforcing the restricted+episodic
// security invariant and applying governance auto-tags before the
// adapter write, per SPEC_FULL.md §4.F.
func (e *Engine) Store(ctx context.Context, tenantID, project, agentID, content string, opts ...StoreOption) (*memory.Record, error) {
	var o StoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	importance := 0.5
	if o.Importance != nil {
		importance = *o.Importance
	}
	layer := o.Layer
	if layer == "" {
		layer = layerImportanceHeuristic(importance)
	}

	rec := memory.NewRecord(tenantID, project, content)
	rec.AgentID = agentID
	rec.Layer = layer
	rec.Importance = importance
	rec.Tags = o.Tags
	rec.SessionID = o.SessionID
	if o.MemoryType != "" {
		rec.MemoryType = o.MemoryType
	}
	if o.InfoClass != "" {
		rec.InfoClass = o.InfoClass
	}
	if o.Metadata != nil {
		rec.Metadata = o.Metadata
	}

	if err := governance.EnforceSecurityPolicy(rec); err != nil {
		return nil, memory.WrapOp("Store", err)
	}
	if o.Governance != nil {
		governance.ApplyAutoTags(rec, *o.Governance)
	}

	if e.embedderP != nil {
		vec, err := e.embedderP.Embed(ctx, content, embedder.TaskDocument)
		if err != nil {
			return nil, memory.WrapOp("Store", fmt.Errorf("%w: %v", memory.ErrEmbeddingFailed, err))
		}
		rec.Embedding = vec
	}

	if err := e.writeThroughLayer(ctx, tenantID, project, agentID, rec, o); err != nil {
		return nil, memory.WrapOp("Store", err)
	}

	if e.vectorStore != nil && len(rec.Embedding) > 0 {
		if err := e.vectorStore.Upsert(ctx, tenantID, "default", rec.ID, rec.Embedding); err != nil {
			if e.config != nil && e.config.ConsistencyMode == ConsistencyStrict {
				return nil, memory.WrapOp("Store", fmt.Errorf("%w: %v", memory.ErrVectorOperation, err))
			}
			log.Warn().Err(err).Str("memory_id", rec.ID.String()).Msg("vector upsert failed after storage write; continuing in lenient consistency mode")
		}
	}

	return rec, nil
}

// writeThroughLayer inserts rec through the layer matching rec.Layer,
// constructing an on-demand pkg/layers facade scoped to
// tenant/project/agent (layers hold no persistent state beyond the
// shared storage.Store, so building one per call is cheap).
func (e *Engine) writeThroughLayer(ctx context.Context, tenantID, project, agentID string, rec *memory.Record, o StoreOptions) error {
	addOpts := []layers.AddOption{layers.WithMetadata(rec.Metadata), layers.WithImportance(rec.Importance)}
	if len(rec.Tags) > 0 {
		addOpts = append(addOpts, layers.WithTags(rec.Tags...))
	}
	if len(rec.Embedding) > 0 {
		addOpts = append(addOpts, layers.WithEmbedding(rec.Embedding))
	}
	if rec.SessionID != "" {
		addOpts = append(addOpts, layers.WithSessionID(rec.SessionID))
	}

	switch rec.Layer {
	case memory.LayerSensory:
		s := layers.NewSensory(e.store, tenantID, project, agentID, layers.SensoryConfig{})
		id, err := s.Add(ctx, rec.Content, addOpts...)
		if err != nil {
			return err
		}
		got, err := e.store.Get(ctx, id, storage.AccessScope{TenantID: tenantID, AgentID: agentID})
		if err != nil {
			return err
		}
		*rec = *got
		return nil
	case memory.LayerWorking:
		w := layers.NewWorking(e.store, tenantID, project, agentID, layers.WorkingConfig{})
		id, err := w.Add(ctx, rec.Content, addOpts...)
		if err != nil {
			return err
		}
		got, err := e.store.Get(ctx, id, storage.AccessScope{TenantID: tenantID, AgentID: agentID})
		if err != nil {
			return err
		}
		*rec = *got
		return nil
	case memory.LayerEpisodic, memory.LayerSemantic:
		lt := layers.NewLongTerm(e.store, tenantID, project, agentID, layers.LongTermConfig{})
		got, err := lt.AddMemory(ctx, rec.Content, o.IsSemantic || rec.Layer == memory.LayerSemantic, addOpts...)
		if err != nil {
			return err
		}
		*rec = *got
		return nil
	case memory.LayerReflective:
		r := layers.NewReflective(e.store, tenantID, project, agentID, layers.ReflectiveConfig{})
		got, err := r.Add(ctx, rec.Content, o.SourceIDs, addOpts...)
		if err != nil {
			return err
		}
		*rec = *got
		return nil
	default:
		return fmt.Errorf("%w: unknown layer %q", memory.ErrInvalidInput, rec.Layer)
	}
}

// QueryOptions carries Query's optional parameters.
type QueryOptions struct {
	Layer       memory.Layer
	Limit       int
	Weights     map[string]float64
	VectorSpace string
}

// QueryOption configures a Query call.
type QueryOption func(*QueryOptions)

// WithQueryLayer scopes the query to a single layer.
func WithQueryLayer(l memory.Layer) QueryOption { return func(o *QueryOptions) { o.Layer = l } }

// WithLimit bounds the number of fused results returned.
func WithLimit(n int) QueryOption { return func(o *QueryOptions) { o.Limit = n } }

// WithWeights overrides the intent analyzer's recommended strategy
// weights.
func WithWeights(w map[string]float64) QueryOption { return func(o *QueryOptions) { o.Weights = w } }

// Query runs the hybrid multi-strategy retrieval pipeline and bumps
// access counters on every returned memory.
func (e *Engine) Query(ctx context.Context, tenantID, project, agentID, queryText string, opts ...QueryOption) ([]search.ScoredResult, error) {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}

	results, err := e.searchEngine.Query(ctx, search.Query{
		TenantID: tenantID,
		Project:  project,
		AgentID:  agentID,
		Text:     queryText,
		Layer:    o.Layer,
		Limit:    o.Limit,
		Weights:  o.Weights,
	})
	if err != nil {
		return nil, memory.WrapOp("Query", err)
	}

	ids := make([]uuid.UUID, len(results))
	for i, r := range results {
		ids[i] = r.MemoryID
	}
	if err := e.searchEngine.UpdateAccessCounters(ctx, storage.AccessScope{TenantID: tenantID, AgentID: agentID}, ids); err != nil {
		return results, memory.WrapOp("Query", err)
	}
	return results, nil
}

// Consolidate runs one Working-layer consolidation pass: gathers
// promotion candidates, groups them by embedding similarity, and
// merges each group into LongTerm via an LLM-backed Synthesizer built
// from this Engine's configured llm.Provider.
func (e *Engine) Consolidate(ctx context.Context, tenantID, project, agentID string, asSemantic, tombstone bool) (int, error) {
	w := layers.NewWorking(e.store, tenantID, project, agentID, layers.WorkingConfig{})
	lt := layers.NewLongTerm(e.store, tenantID, project, agentID, layers.LongTermConfig{})

	candidates, err := w.PromotionCandidates(ctx)
	if err != nil {
		return 0, memory.WrapOp("Consolidate", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	groups := layers.ConsolidationGroups(candidates)
	synth := e.llmSynthesizer()

	merged := 0
	for _, group := range groups {
		if _, err := w.Consolidate(ctx, group, lt, synth, asSemantic, tombstone); err != nil {
			return merged, memory.WrapOp("Consolidate", err)
		}
		merged++
	}
	return merged, nil
}

// llmSynthesizer adapts this Engine's llm.Provider into a
// layers.Synthesizer, keeping pkg/layers free of any LLM dependency
// (see pkg/layers's DESIGN.md entry).
func (e *Engine) llmSynthesizer() layers.Synthesizer {
	return func(ctx context.Context, contents []string) (string, error) {
		if e.llmP == nil {
			return contents[len(contents)-1], nil
		}
		joined := ""
		for i, c := range contents {
			if i > 0 {
				joined += "\n"
			}
			joined += "- " + c
		}
		prompt := "Synthesize the following related memories into one concise statement:\n" + joined
		return e.llmP.Generate(ctx, prompt)
	}
}

// RunRetention sweeps tenantID's expired episodic memories per the
// configured retention policy.
func (e *Engine) RunRetention(ctx context.Context, tenantID string) (governance.RetentionResult, error) {
	result, err := e.retention.CleanupExpired(ctx, tenantID)
	if err != nil {
		return nil, memory.WrapOp("RunRetention", err)
	}
	return result, nil
}

// EraseUserData implements GDPR Article 17 for tenantID/userIdentifier.
func (e *Engine) EraseUserData(ctx context.Context, tenantID, userIdentifier, deletedBy string) (governance.ErasureResult, error) {
	result, err := e.eraser.EraseUserData(ctx, tenantID, userIdentifier, deletedBy)
	if err != nil {
		return result, memory.WrapOp("EraseUserData", err)
	}
	return result, nil
}

// Statistics reports per-layer record counts for a tenant.
type Statistics struct {
	TenantID     string
	CountByLayer map[memory.Layer]int64
	Total        int64
}

// GetStatistics reports per-layer record counts for tenantID.
func (e *Engine) GetStatistics(ctx context.Context, tenantID string) (Statistics, error) {
	stats := Statistics{TenantID: tenantID, CountByLayer: make(map[memory.Layer]int64)}
	allLayers := []memory.Layer{memory.LayerSensory, memory.LayerWorking, memory.LayerEpisodic, memory.LayerSemantic, memory.LayerReflective}
	for _, l := range allLayers {
		n, err := e.store.Count(ctx, storage.ListOptions{TenantID: tenantID, Layer: l})
		if err != nil {
			return stats, memory.WrapOp("GetStatistics", err)
		}
		stats.CountByLayer[l] = n
		stats.Total += n
	}
	return stats, nil
}

// Clear deletes every memory belonging to tenantID across storage, the
// vector index, and the knowledge graph — a full tenant-deletion
// cascade, the non-user-scoped counterpart to EraseUserData.
func (e *Engine) Clear(ctx context.Context, tenantID string) error {
	if _, err := e.store.DeleteMatching(ctx, storage.ListOptions{TenantID: tenantID}); err != nil {
		return memory.WrapOp("Clear", err)
	}
	if e.vectorStore != nil {
		if err := e.vectorStore.DeleteTenant(ctx, tenantID); err != nil {
			return memory.WrapOp("Clear", err)
		}
	}
	if e.graphStore != nil {
		if err := e.graphStore.DeleteTenant(ctx, tenantID); err != nil {
			return memory.WrapOp("Clear", err)
		}
	}
	return nil
}

// now is a small indirection so tests can exercise time-dependent
// helpers deterministically without a global clock override.
var now = func() time.Time { return time.Now().UTC() }
