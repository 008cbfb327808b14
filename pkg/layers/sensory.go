package layers

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultSensoryCapacity is the ring's default item cap.
const DefaultSensoryCapacity = 100

// DefaultSensoryRetention is the ring's default wall-clock retention.
const DefaultSensoryRetention = 30 * time.Second

// DefaultPromotionThreshold is the importance an item must clear to be
// promoted out of sensory into working, per spec.md §4.C.
const DefaultPromotionThreshold = 0.6

// Sensory is the shortest-lived layer: a capacity-bounded, time-bounded
// ring of raw ingest. Sensory items are never searched directly; the only
// ways out are expiry (deleted) or promotion (re-tagged into Working).
type Sensory struct {
	base
	capacity  int
	retention time.Duration
	threshold float64
}

// SensoryConfig configures a Sensory layer's ring parameters.
type SensoryConfig struct {
	Capacity           int
	Retention          time.Duration
	PromotionThreshold float64
}

// NewSensory constructs a Sensory layer. Zero-valued config fields fall
// back to the spec's documented defaults (capacity 100, retention 30s,
// promotion threshold 0.6).
func NewSensory(store storage.Store, tenantID, project, agentID string, cfg SensoryConfig) *Sensory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultSensoryCapacity
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSensoryRetention
	}
	if cfg.PromotionThreshold <= 0 {
		cfg.PromotionThreshold = DefaultPromotionThreshold
	}
	return &Sensory{
		base: base{
			store:     store,
			tenantID:  tenantID,
			project:   project,
			agentID:   agentID,
			layerName: memory.LayerSensory,
		},
		capacity:  cfg.Capacity,
		retention: cfg.Retention,
		threshold: cfg.PromotionThreshold,
	}
}

// Add appends a sensory item. Every write sweeps expired items first and
// then evicts the oldest surviving item if the ring is at capacity —
// "writes append; reads return the most recent N; expired items are
// physically deleted during any write" per spec.md §4.C.
func (s *Sensory) Add(ctx context.Context, content string, opts ...AddOption) (uuid.UUID, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return uuid.Nil, err
	}

	o := applyAddOptions(opts)
	importance := 0.3
	if o.Importance != nil {
		importance = *o.Importance
		o.Importance = nil
	}
	rec := s.newRecord(content, importance, o)

	items, err := s.recent(ctx, s.capacity)
	if err != nil {
		return uuid.Nil, err
	}
	if len(items) >= s.capacity {
		oldest := items[len(items)-1]
		if err := s.store.Delete(ctx, oldest.ID, s.scope()); err != nil {
			return uuid.Nil, err
		}
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// Recent returns the n most recently created sensory items.
func (s *Sensory) Recent(ctx context.Context, n int) ([]*memory.Record, error) {
	return s.recent(ctx, n)
}

func (s *Sensory) recent(ctx context.Context, n int) ([]*memory.Record, error) {
	items, err := s.store.List(ctx, storage.ListOptions{
		TenantID: s.tenantID,
		Project:  s.project,
		AgentID:  s.agentID,
		Layer:    memory.LayerSensory,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

// Sweep deletes every sensory item whose retention window has elapsed and
// returns the count removed.
func (s *Sensory) Sweep(ctx context.Context) (int, error) {
	items, err := s.store.List(ctx, storage.ListOptions{
		TenantID: s.tenantID,
		Project:  s.project,
		AgentID:  s.agentID,
		Layer:    memory.LayerSensory,
	})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	removed := 0
	for _, rec := range items {
		if now.Sub(rec.CreatedAt) > s.retention {
			if err := s.store.Delete(ctx, rec.ID, s.scope()); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Cleanup performs sensory's only lifecycle action: expiring stale items.
func (s *Sensory) Cleanup(ctx context.Context) (int, error) {
	return s.Sweep(ctx)
}

// PromotionCandidates returns sensory items whose importance clears the
// promotion threshold and so are eligible to move to Working.
func (s *Sensory) PromotionCandidates(ctx context.Context) ([]*memory.Record, error) {
	items, err := s.recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	var candidates []*memory.Record
	for _, rec := range items {
		if rec.Importance >= s.threshold {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// Promote re-tags a sensory item as Working and persists it durably there,
// then deletes the sensory copy — "the item is re-tagged and persisted
// durably" per spec.md §4.C.
func (s *Sensory) Promote(ctx context.Context, id uuid.UUID, working *Working) (*memory.Record, error) {
	rec, err := s.store.Get(ctx, id, s.scope())
	if err != nil {
		return nil, err
	}
	rec.Layer = memory.LayerWorking
	rec.BumpVersion(time.Now().UTC())
	if err := working.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id, s.scope()); err != nil {
		return nil, err
	}
	return rec, nil
}
