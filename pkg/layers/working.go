package layers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/scoring"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultWorkingCapacity is Working's default item cap.
const DefaultWorkingCapacity = 100

// DefaultWorkingRetention is Working's default minute-scale retention.
const DefaultWorkingRetention = 60 * time.Minute

// DefaultWorkingImportanceThreshold and DefaultWorkingUsageThreshold gate
// promotion to long-term: both must be cleared within the retention window.
const (
	DefaultWorkingImportanceThreshold = 0.6
	DefaultWorkingUsageThreshold      = 3
)

// ConsolidationSimilarity is the cosine-similarity floor at which two
// working items are considered semantically close enough to consolidate
// together.
const ConsolidationSimilarity = 0.85

// Synthesizer merges the contents of a consolidation group into a single
// piece of long-term content. The engine wires this to an llm.Provider's
// Summarize/Generate call; pkg/layers stays free of any LLM dependency.
type Synthesizer func(ctx context.Context, contents []string) (string, error)

// Working is the minute-scale, searchable staging layer between raw
// ingest and persistent storage.
type Working struct {
	base
	capacity            int
	retention           time.Duration
	importanceThreshold float64
	usageThreshold      int64
}

// WorkingConfig configures a Working layer.
type WorkingConfig struct {
	Capacity            int
	Retention           time.Duration
	ImportanceThreshold float64
	UsageThreshold      int64
}

// NewWorking constructs a Working layer, falling back to the spec's
// documented defaults for any zero-valued config field.
func NewWorking(store storage.Store, tenantID, project, agentID string, cfg WorkingConfig) *Working {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultWorkingCapacity
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultWorkingRetention
	}
	if cfg.ImportanceThreshold <= 0 {
		cfg.ImportanceThreshold = DefaultWorkingImportanceThreshold
	}
	if cfg.UsageThreshold <= 0 {
		cfg.UsageThreshold = DefaultWorkingUsageThreshold
	}
	return &Working{
		base: base{
			store:     store,
			tenantID:  tenantID,
			project:   project,
			agentID:   agentID,
			layerName: memory.LayerWorking,
		},
		capacity:            cfg.Capacity,
		retention:           cfg.Retention,
		importanceThreshold: cfg.ImportanceThreshold,
		usageThreshold:      cfg.UsageThreshold,
	}
}

// Add inserts a new working item directly (not via sensory promotion).
// When the layer is at capacity the least-important item is evicted to
// make room, since Working has no time-ordered ring semantics of its own.
func (w *Working) Add(ctx context.Context, content string, opts ...AddOption) (uuid.UUID, error) {
	o := applyAddOptions(opts)
	importance := 0.5
	if o.Importance != nil {
		importance = *o.Importance
		o.Importance = nil
	}
	rec := w.newRecord(content, importance, o)

	count, err := w.Count(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if count >= int64(w.capacity) {
		if err := w.evictLeastImportant(ctx); err != nil {
			return uuid.Nil, err
		}
	}

	if err := w.store.Insert(ctx, rec); err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

func (w *Working) evictLeastImportant(ctx context.Context) error {
	items, err := w.store.List(ctx, storage.ListOptions{
		TenantID: w.tenantID, Project: w.project, AgentID: w.agentID, Layer: memory.LayerWorking,
	})
	if err != nil || len(items) == 0 {
		return err
	}
	worst := items[0]
	for _, rec := range items[1:] {
		if rec.Importance < worst.Importance {
			worst = rec
		}
	}
	return w.store.Delete(ctx, worst.ID, w.scope())
}

// Cleanup expires working items whose retention window has elapsed and
// that never met the promotion bar.
func (w *Working) Cleanup(ctx context.Context) (int, error) {
	items, err := w.store.List(ctx, storage.ListOptions{
		TenantID: w.tenantID, Project: w.project, AgentID: w.agentID, Layer: memory.LayerWorking,
	})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	for _, rec := range items {
		if now.Sub(rec.CreatedAt) <= w.retention {
			continue
		}
		if w.meetsPromotionBar(rec) {
			continue
		}
		if err := w.store.Delete(ctx, rec.ID, w.scope()); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (w *Working) meetsPromotionBar(rec *memory.Record) bool {
	return rec.Importance >= w.importanceThreshold && rec.AccessCount >= w.usageThreshold
}

// PromotionCandidates returns working items eligible for promotion to
// long-term: importance >= threshold AND AccessCount >= the usage
// threshold within the retention window, per spec.md §4.C.
func (w *Working) PromotionCandidates(ctx context.Context) ([]*memory.Record, error) {
	items, err := w.store.List(ctx, storage.ListOptions{
		TenantID: w.tenantID, Project: w.project, AgentID: w.agentID, Layer: memory.LayerWorking,
	})
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	var candidates []*memory.Record
	for _, rec := range items {
		if now.Sub(rec.CreatedAt) > w.retention {
			continue
		}
		if w.meetsPromotionBar(rec) {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// ConsolidationGroups partitions candidates into sets whose embeddings are
// pairwise similar enough (>= ConsolidationSimilarity) to merge into one
// long-term item. Candidates without an embedding form their own singleton
// group, since similarity cannot be judged for them.
func ConsolidationGroups(candidates []*memory.Record) [][]*memory.Record {
	assigned := make([]bool, len(candidates))
	var groups [][]*memory.Record
	for i, rec := range candidates {
		if assigned[i] {
			continue
		}
		group := []*memory.Record{rec}
		assigned[i] = true
		if len(rec.Embedding) == 0 {
			groups = append(groups, group)
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if assigned[j] || len(candidates[j].Embedding) == 0 {
				continue
			}
			if scoring.CosineSimilarity(toFloat64(rec.Embedding), toFloat64(candidates[j].Embedding)) >= ConsolidationSimilarity {
				group = append(group, candidates[j])
				assigned[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Consolidate merges a group of working items into a single long-term
// item via synth, averages and boosts importance by +0.2 (capped at 1.0),
// lists the source IDs in the new item's metadata, and marks the source
// items consolidated (tombstone=true physically deletes them; otherwise
// they are left in place tagged "consolidated").
func (w *Working) Consolidate(ctx context.Context, group []*memory.Record, lt *LongTerm, synth Synthesizer, asSemantic, tombstone bool) (*memory.Record, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("layers: consolidate: empty group")
	}
	contents := make([]string, len(group))
	sourceIDs := make([]string, len(group))
	var totalImportance float64
	for i, rec := range group {
		contents[i] = rec.Content
		sourceIDs[i] = rec.ID.String()
		totalImportance += rec.Importance
	}
	avgImportance := totalImportance / float64(len(group))
	newImportance := avgImportance + 0.2
	if newImportance > 1.0 {
		newImportance = 1.0
	}

	content, err := synth(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("layers: consolidate: synthesize: %w", err)
	}

	merged := &memory.Record{Embedding: group[0].Embedding}
	mergedTags := map[string]struct{}{}
	for _, rec := range group {
		for _, tag := range rec.Tags {
			mergedTags[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(mergedTags))
	for tag := range mergedTags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	ltRec, err := lt.AddMemory(ctx, content, asSemantic,
		WithImportance(newImportance),
		WithTags(tags...),
		WithEmbedding(merged.Embedding),
		WithMetadata(map[string]interface{}{"source_memory_ids": sourceIDs, "consolidated_from": "working"}),
	)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, rec := range group {
		if tombstone {
			if err := w.store.Delete(ctx, rec.ID, w.scope()); err != nil {
				return nil, err
			}
			continue
		}
		rec.Tags = append(rec.Tags, "consolidated")
		if rec.Metadata == nil {
			rec.Metadata = map[string]interface{}{}
		}
		rec.Metadata["consolidated_into"] = ltRec.ID.String()
		rec.BumpVersion(now)
		if err := w.store.Update(ctx, rec, w.scope()); err != nil {
			return nil, err
		}
	}

	return ltRec, nil
}
