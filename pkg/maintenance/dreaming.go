package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultDreamingMinSamples is the minimum number of candidate memories
// a dreaming cycle requires before it bothers generating a reflection,
// grounded on test_dreaming_worker_insufficient_memories ("< 3 memories"
// skips).
const DefaultDreamingMinSamples = 3

// ReflectionGenerator is the narrow slice of pkg/reflection.Engine that
// DreamingWorker depends on, avoiding an import-cycle-prone direct
// dependency on the full reflection package (the same pattern
// pkg/governance.GraphDeleter uses for pkg/graphstore.Store).
type ReflectionGenerator interface {
	GenerateReflection(ctx context.Context, tenantID, project, agentID string, seedIDs []uuid.UUID) (*memory.Record, error)
}

// DreamingWorker periodically samples a tenant's recent high-importance
// episodic memories and asks a ReflectionGenerator to distill them into
// a reflective-layer insight, the "light dreaming" pass of spec.md
// §4.G. Grounded on
// tests/integration/test_dreaming_worker.py's lookback/importance/
// min-sample gating.
type DreamingWorker struct {
	Store      storage.Store
	Reflector  ReflectionGenerator
	Enabled    bool
	breaker    *gobreaker.CircuitBreaker
}

// NewDreamingWorker constructs a DreamingWorker. A circuit breaker
// guards the reflector call since it is typically LLM-backed and the
// slowest, most failure-prone step in the maintenance cycle.
func NewDreamingWorker(store storage.Store, reflector ReflectionGenerator, enabled bool) *DreamingWorker {
	return &DreamingWorker{
		Store:     store,
		Reflector: reflector,
		Enabled:   enabled,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "dreaming-reflector",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// RunDreamingCycle samples tenantID/project's recent high-importance
// episodic memories within lookbackHours and, if there are at least
// DefaultDreamingMinSamples of them, asks the reflector to generate one
// reflection from up to maxSamples of them. Returns an empty slice (not
// an error) when dreaming is disabled, no reflector is configured, or
// there aren't enough candidates — mirroring the Python worker's
// skip-is-not-a-failure semantics.
func (w *DreamingWorker) RunDreamingCycle(ctx context.Context, tenantID, project, agentID string, lookbackHours int, minImportance float64, maxSamples int) ([]*memory.Record, error) {
	if !w.Enabled || w.Reflector == nil {
		return nil, nil
	}
	if maxSamples <= 0 {
		maxSamples = 20
	}

	records, err := w.Store.List(ctx, storage.ListOptions{TenantID: tenantID, Project: project, AgentID: agentID, Layer: memory.LayerEpisodic})
	if err != nil {
		return nil, memory.WrapOp("DreamingWorker.RunDreamingCycle", err)
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	var candidates []*memory.Record
	for _, rec := range records {
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		if rec.Importance < minImportance {
			continue
		}
		candidates = append(candidates, rec)
		if len(candidates) >= maxSamples {
			break
		}
	}

	if len(candidates) < DefaultDreamingMinSamples {
		return nil, nil
	}

	seedIDs := make([]uuid.UUID, len(candidates))
	for i, rec := range candidates {
		seedIDs[i] = rec.ID
	}

	result, err := w.breaker.Execute(func() (interface{}, error) {
		return w.Reflector.GenerateReflection(ctx, tenantID, project, agentID, seedIDs)
	})
	if err != nil {
		return nil, memory.WrapOp("DreamingWorker.RunDreamingCycle", err)
	}

	reflection, _ := result.(*memory.Record)
	return []*memory.Record{reflection}, nil
}
