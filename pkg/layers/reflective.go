package layers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultReflectiveImportance is the minimum importance a reflection is
// stored with, per spec.md §4.C ("high default importance (≥ 0.6)").
const DefaultReflectiveImportance = 0.6

// DefaultReflectiveFloor is the importance floor reflections are
// protected from decaying below.
const DefaultReflectiveFloor = 0.3

// Reflective holds insights, patterns, and summaries the reflection
// engine generates from clusters of long-term items. Reflections never
// decay below a configurable floor and are exempt from the maintenance
// decay worker entirely (see pkg/maintenance).
type Reflective struct {
	base
	floor float64
}

// ReflectiveConfig configures a Reflective layer.
type ReflectiveConfig struct {
	Floor float64
}

// NewReflective constructs a Reflective layer.
func NewReflective(store storage.Store, tenantID, project, agentID string, cfg ReflectiveConfig) *Reflective {
	floor := cfg.Floor
	if floor <= 0 {
		floor = DefaultReflectiveFloor
	}
	return &Reflective{
		base: base{
			store:     store,
			tenantID:  tenantID,
			project:   project,
			agentID:   agentID,
			layerName: memory.LayerReflective,
		},
		floor: floor,
	}
}

// Add records a new reflection, linking it back to the memory IDs that
// produced it via metadata (avoiding an in-memory cyclic reference
// between reflective and long-term records, per spec.md §9). Importance
// is floored at DefaultReflectiveImportance unless explicitly overridden
// higher.
func (r *Reflective) Add(ctx context.Context, content string, sourceMemoryIDs []uuid.UUID, opts ...AddOption) (*memory.Record, error) {
	o := applyAddOptions(opts)
	importance := DefaultReflectiveImportance
	if o.Importance != nil && *o.Importance > importance {
		importance = *o.Importance
	}
	o.Importance = nil

	rec := r.newRecord(content, importance, o)
	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	ids := make([]string, len(sourceMemoryIDs))
	for i, id := range sourceMemoryIDs {
		ids[i] = id.String()
	}
	rec.Metadata["source_memory_ids"] = ids

	if err := r.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ProtectFloor raises rec's importance to this layer's floor if it has
// fallen below it, and persists the change. Maintenance workers call
// this instead of ever deleting a reflective record.
func (r *Reflective) ProtectFloor(ctx context.Context, rec *memory.Record) error {
	if rec.Importance >= r.floor {
		return nil
	}
	rec.Importance = r.floor
	rec.BumpVersion(time.Now().UTC())
	return r.store.Update(ctx, rec, r.scope())
}

// Cleanup is a no-op: reflective memories never decay below their floor
// and are never swept, per spec.md §4.C and §4.G.
func (r *Reflective) Cleanup(ctx context.Context) (int, error) {
	return 0, nil
}
