package layers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultLongTermCleanupFloor is the importance floor below which
// long-term items are swept, per spec.md §4.C.
const DefaultLongTermCleanupFloor = 0.1

// DefaultEpisodicImportance and DefaultSemanticImportance are the
// defaults longterm.py's add_memory assigns when importance is omitted.
const (
	DefaultEpisodicImportance = 0.5
	DefaultSemanticImportance = 0.7
)

// LongTerm is the persistent union of episodic (time-bound events) and
// semantic (decontextualized knowledge) memory. It never auto-decays;
// cleanup only sweeps items that have fallen below a low importance
// floor, mirroring longterm.py's cleanup().
//
// LongTerm carries no fixed layer tag: AddMemory tags each record
// per call as either memory.LayerEpisodic or memory.LayerSemantic.
type LongTerm struct {
	store        storage.Store
	tenantID     string
	project      string
	agentID      string
	cleanupFloor float64
}

// LongTermConfig configures a LongTerm layer.
type LongTermConfig struct {
	CleanupFloor float64
}

// NewLongTerm constructs a LongTerm layer.
func NewLongTerm(store storage.Store, tenantID, project, agentID string, cfg LongTermConfig) *LongTerm {
	floor := cfg.CleanupFloor
	if floor <= 0 {
		floor = DefaultLongTermCleanupFloor
	}
	return &LongTerm{store: store, tenantID: tenantID, project: project, agentID: agentID, cleanupFloor: floor}
}

func (lt *LongTerm) scope() storage.AccessScope {
	return storage.AccessScope{TenantID: lt.tenantID, AgentID: lt.agentID}
}

// AddMemory adds a memory directly to long-term storage as episodic or
// semantic. Importance defaults to 0.7 for semantic, 0.5 for episodic,
// matching longterm.py's add_memory, unless WithImportance overrides it.
// The memory_subtype / is_semantic metadata keys mirror the original's
// bookkeeping so UpgradeToSemantic and Search can filter on them.
func (lt *LongTerm) AddMemory(ctx context.Context, content string, isSemantic bool, opts ...AddOption) (*memory.Record, error) {
	o := applyAddOptions(opts)
	importance := DefaultEpisodicImportance
	if isSemantic {
		importance = DefaultSemanticImportance
	}
	if o.Importance != nil {
		importance = *o.Importance
		o.Importance = nil
	}

	layer := memory.LayerEpisodic
	if isSemantic {
		layer = memory.LayerSemantic
	}
	b := base{store: lt.store, tenantID: lt.tenantID, project: lt.project, agentID: lt.agentID, layerName: layer}
	rec := b.newRecord(content, importance, o)
	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	rec.Metadata["is_semantic"] = isSemantic
	if isSemantic {
		rec.Metadata["memory_subtype"] = "semantic"
	} else {
		rec.Metadata["memory_subtype"] = "episodic"
	}

	if err := lt.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get fetches a long-term memory by ID (episodic or semantic) and touches
// its access bookkeeping.
func (lt *LongTerm) Get(ctx context.Context, id uuid.UUID) (*memory.Record, error) {
	rec, err := lt.store.Get(ctx, id, lt.scope())
	if err != nil {
		return nil, err
	}
	rec.TouchAccess(time.Now().UTC())
	rec.UsageCount++
	if err := lt.store.Update(ctx, rec, lt.scope()); err != nil {
		return nil, fmt.Errorf("layers: touch access: %w", err)
	}
	return rec, nil
}

// SearchOpt selects which long-term sub-layers a listing spans.
type SearchOpt int

const (
	// SearchBoth lists both episodic and semantic items (default).
	SearchBoth SearchOpt = iota
	SearchEpisodicOnly
	SearchSemanticOnly
)

// List returns long-term items matching tags, spanning episodic and/or
// semantic per which. Each sub-layer is listed newest first up to limit
// and the lists are concatenated (episodic before semantic), so with
// SearchBoth the result is not ordered across sub-layers and may hold
// up to 2*limit items. Ranking by relevance is left to pkg/search; this
// is the raw listing primitive.
func (lt *LongTerm) List(ctx context.Context, tags []string, limit int, which SearchOpt) ([]*memory.Record, error) {
	var layersToQuery []memory.Layer
	switch which {
	case SearchEpisodicOnly:
		layersToQuery = []memory.Layer{memory.LayerEpisodic}
	case SearchSemanticOnly:
		layersToQuery = []memory.Layer{memory.LayerSemantic}
	default:
		layersToQuery = []memory.Layer{memory.LayerEpisodic, memory.LayerSemantic}
	}

	var all []*memory.Record
	for _, layer := range layersToQuery {
		items, err := lt.store.List(ctx, storage.ListOptions{
			TenantID: lt.tenantID, Project: lt.project, AgentID: lt.agentID,
			Layer: layer, Tags: tags, Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// Cleanup removes episodic and semantic items whose importance has
// fallen below the configured floor (default 0.1). storage.Store has no
// importance filter, so this lists each sub-layer and deletes the items
// that fail belowFloor individually rather than via DeleteMatching.
func (lt *LongTerm) Cleanup(ctx context.Context) (int, error) {
	removed := 0
	for _, layer := range []memory.Layer{memory.LayerEpisodic, memory.LayerSemantic} {
		items, err := lt.store.List(ctx, storage.ListOptions{
			TenantID: lt.tenantID, Project: lt.project, AgentID: lt.agentID, Layer: layer,
		})
		if err != nil {
			return removed, err
		}
		for _, rec := range items {
			if !lt.belowFloor(rec) {
				continue
			}
			if err := lt.store.Delete(ctx, rec.ID, lt.scope()); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// belowFloor reports whether rec's importance has fallen below this
// layer's cleanup floor.
func (lt *LongTerm) belowFloor(rec *memory.Record) bool {
	return rec.Importance < lt.cleanupFloor
}

// UpgradeToSemantic decontextualizes an episodic memory into a new
// semantic one: links back via derived_from_episodic metadata, bumps
// importance by +0.1 (capped at 1.0), and optionally substitutes
// generalizedContent for the episodic item's raw content.
func (lt *LongTerm) UpgradeToSemantic(ctx context.Context, episodicID uuid.UUID, generalizedContent string) (*memory.Record, error) {
	episodic, err := lt.Get(ctx, episodicID)
	if err != nil {
		return nil, err
	}

	content := episodic.Content
	if generalizedContent != "" {
		content = generalizedContent
	}

	metadata := map[string]interface{}{}
	for k, v := range episodic.Metadata {
		metadata[k] = v
	}
	metadata["derived_from_episodic"] = episodicID.String()

	importance := episodic.Importance + 0.1
	if importance > 1.0 {
		importance = 1.0
	}

	return lt.AddMemory(ctx, content, true,
		WithImportance(importance),
		WithTags(episodic.Tags...),
		WithEmbedding(episodic.Embedding),
		WithMetadata(metadata),
	)
}

// Count returns the combined episodic+semantic item count.
func (lt *LongTerm) Count(ctx context.Context) (int64, error) {
	episodic, err := lt.CountEpisodic(ctx)
	if err != nil {
		return 0, err
	}
	semantic, err := lt.CountSemantic(ctx)
	if err != nil {
		return 0, err
	}
	return episodic + semantic, nil
}

// CountEpisodic returns the number of episodic items.
func (lt *LongTerm) CountEpisodic(ctx context.Context) (int64, error) {
	return lt.store.Count(ctx, storage.ListOptions{
		TenantID: lt.tenantID, Project: lt.project, AgentID: lt.agentID, Layer: memory.LayerEpisodic,
	})
}

// CountSemantic returns the number of semantic items.
func (lt *LongTerm) CountSemantic(ctx context.Context) (int64, error) {
	return lt.store.Count(ctx, storage.ListOptions{
		TenantID: lt.tenantID, Project: lt.project, AgentID: lt.agentID, Layer: memory.LayerSemantic,
	})
}

// Delete removes a long-term memory by ID.
func (lt *LongTerm) Delete(ctx context.Context, id uuid.UUID) error {
	return lt.store.Delete(ctx, id, lt.scope())
}
