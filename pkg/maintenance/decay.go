// Package maintenance runs the background jobs that keep the memory
// hierarchy healthy over time: importance decay, aging-cluster
// summarization, and light "dreaming" (batch reflection generation),
// plus a small scheduler FSM that runs them on a cron cadence with
// per-tenant failure isolation. Grounded on the teacher's background
// job shape generalized to the four workers
// `original_source/apps/memory_api/workers/memory_maintenance.py`
// names, with exact per-worker semantics recovered from
// `services/importance_scoring.py` (decay) and
// `tests/integration/test_{decay,dreaming}_worker.py`.
package maintenance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DefaultDecayFloor is the importance floor decay never crosses, lifted
// directly from importance_scoring.py's `max(0.01, new_importance)`.
const DefaultDecayFloor = 0.01

// decayedLayers are the layers subject to importance decay. Sensory and
// Working are already short-lived by capacity/retention, not decay;
// Reflective is permanently floor-protected and exempt (see
// pkg/layers.Reflective's doc comment).
var decayedLayers = []memory.Layer{memory.LayerEpisodic, memory.LayerSemantic}

// DecayWorker periodically reduces the importance of long-term memories
// that haven't been accessed recently, so stale content naturally sinks
// in retrieval ranking (and eventually falls below a layer's cleanup
// floor) without being deleted outright.
type DecayWorker struct {
	Store storage.Store
}

// NewDecayWorker constructs a DecayWorker.
func NewDecayWorker(store storage.Store) *DecayWorker {
	return &DecayWorker{Store: store}
}

// DecayStats reports one decay cycle's outcome, mirroring the Python
// worker's `{"total_tenants": ..., "total_updated": ...}` report shape.
type DecayStats struct {
	TotalTenants int
	TotalUpdated int
	Errors       []error
}

// RunDecayCycle applies time-based importance decay across tenantIDs
// (or every tenant with at least one record, if tenantIDs is nil).
// Each tenant is processed independently; one tenant's failure is
// logged and does not abort the others, per spec.md §9's per-tenant
// isolated-failure design note.
func (w *DecayWorker) RunDecayCycle(ctx context.Context, tenantIDs []string, decayRate float64, considerAccessStats bool) (DecayStats, error) {
	if tenantIDs == nil {
		ids, err := w.Store.DistinctTenantIDs(ctx)
		if err != nil {
			return DecayStats{}, memory.WrapOp("DecayWorker.RunDecayCycle", err)
		}
		tenantIDs = ids
	}

	stats := DecayStats{TotalTenants: len(tenantIDs)}
	now := time.Now().UTC()

	for _, tenantID := range tenantIDs {
		updated, err := w.decayTenant(ctx, tenantID, decayRate, considerAccessStats, now)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("decay cycle failed for tenant")
			stats.Errors = append(stats.Errors, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		stats.TotalUpdated += updated
	}
	return stats, nil
}

func (w *DecayWorker) decayTenant(ctx context.Context, tenantID string, decayRate float64, considerAccessStats bool, now time.Time) (int, error) {
	updated := 0
	for _, layer := range decayedLayers {
		records, err := w.Store.List(ctx, storage.ListOptions{TenantID: tenantID, Layer: layer})
		if err != nil {
			return updated, err
		}
		for _, rec := range records {
			rate := effectiveDecayRate(decayRate, considerAccessStats, rec.LastAccessedAt, now)
			newImportance := math.Max(DefaultDecayFloor, rec.Importance*(1-rate))
			if newImportance == rec.Importance {
				continue
			}
			rec.Importance = newImportance
			if err := w.Store.Update(ctx, rec, storage.AccessScope{TenantID: tenantID}); err != nil {
				return updated, err
			}
			updated++
		}
	}
	return updated, nil
}

// effectiveDecayRate implements importance_scoring.py's
// decay_importance formula: stale memories (not accessed in 30+ days)
// decay faster, recently-accessed ones (under 7 days) decay at half
// rate, everything else decays at the base rate.
func effectiveDecayRate(decayRate float64, considerAccessStats bool, lastAccessedAt, now time.Time) float64 {
	if !considerAccessStats {
		return decayRate
	}
	daysSinceAccess := now.Sub(lastAccessedAt).Hours() / 24
	switch {
	case daysSinceAccess > 30:
		return decayRate * (1 + daysSinceAccess/30)
	case daysSinceAccess < 7:
		return decayRate * 0.5
	default:
		return decayRate
	}
}
