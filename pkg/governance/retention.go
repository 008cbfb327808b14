package governance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DataClass classifies a category of stored data for retention purposes,
// mirroring retention_service.py's DataClass enum.
type DataClass string

const (
	DataClassEpisodicMemory   DataClass = "episodic_memory"
	DataClassLongTermMemory   DataClass = "long_term_memory"
	DataClassReflectiveMemory DataClass = "reflective_memory"
	DataClassSemanticNodes    DataClass = "semantic_nodes"
	DataClassGraphTriples     DataClass = "graph_triples"
	DataClassAuditLogs        DataClass = "audit_logs"
	DataClassCostLogs         DataClass = "cost_logs"
	DataClassEmbeddings       DataClass = "embeddings"
)

// RetentionPolicy configures how long one DataClass is kept.
// RetentionDays <= 0 means "never delete" (retention_service.py's -1/0
// sentinel, collapsed to one non-positive check here since Go has no
// reason to distinguish "never" from "immediately" for a class that in
// practice is always configured as one or the other).
type RetentionPolicy struct {
	DataClass     DataClass
	RetentionDays int
	// Exceptions lists tags exempt from deletion, e.g. a legal hold tag.
	Exceptions []string
}

// DefaultRetentionPolicies mirrors retention_service.py's
// DEFAULT_RETENTION_POLICIES table.
func DefaultRetentionPolicies() map[DataClass]RetentionPolicy {
	defaults := map[DataClass]int{
		DataClassEpisodicMemory:   365,
		DataClassLongTermMemory:   -1,
		DataClassReflectiveMemory: -1,
		DataClassSemanticNodes:    -1,
		DataClassGraphTriples:     -1,
		DataClassAuditLogs:        2555,
		DataClassCostLogs:         1095,
		DataClassEmbeddings:       365,
	}
	out := make(map[DataClass]RetentionPolicy, len(defaults))
	for class, days := range defaults {
		out[class] = RetentionPolicy{DataClass: class, RetentionDays: days}
	}
	return out
}

// RetentionResult reports how many records were swept per data class.
type RetentionResult map[DataClass]int64

// RetentionService runs scheduled retention sweeps over the storage
// backend, grounded on retention_service.py's RetentionService but
// narrowed to the data classes this module actually persists through
// pkg/storage (episodic memory; the Go module has no separate
// cost_logs/embeddings tables, so those sweeps are no-ops here — see
// DESIGN.md).
type RetentionService struct {
	Store  storage.Store
	Audit  *AuditLog
	Policy map[DataClass]RetentionPolicy
}

// NewRetentionService builds a RetentionService with the default policy
// table; callers may override entries in the returned Policy map before
// the first CleanupExpired call.
func NewRetentionService(store storage.Store, audit *AuditLog) *RetentionService {
	return &RetentionService{Store: store, Audit: audit, Policy: DefaultRetentionPolicies()}
}

// CleanupExpired sweeps tenantID's episodic memories older than the
// configured retention window, respecting per-record tag exceptions, and
// emits an audit row for every non-empty sweep.
func (s *RetentionService) CleanupExpired(ctx context.Context, tenantID string) (RetentionResult, error) {
	results := make(RetentionResult)

	policy := s.Policy[DataClassEpisodicMemory]
	if policy.RetentionDays <= 0 {
		return results, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -policy.RetentionDays)
	records, err := s.Store.List(ctx, storage.ListOptions{TenantID: tenantID, Layer: memory.LayerEpisodic})
	if err != nil {
		return nil, err
	}

	var deleted int64
	for _, rec := range records {
		if rec.CreatedAt.After(cutoff) {
			continue
		}
		if hasAnyTag(rec.Tags, policy.Exceptions) {
			continue
		}
		if err := s.Store.Delete(ctx, rec.ID, storage.AccessScope{TenantID: tenantID}); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("memory_id", rec.ID.String()).
				Msg("retention cleanup: failed to delete expired episodic memory")
			continue
		}
		deleted++
	}
	results[DataClassEpisodicMemory] = deleted

	if deleted > 0 && s.Audit != nil {
		if err := s.Audit.Log(ctx, AuditEntry{
			TenantID:        tenantID,
			DataClass:       DataClassEpisodicMemory,
			DeletionReason:  ReasonRetentionPolicy,
			DeletedCount:    int(deleted),
			DeletedBy:       "system",
			Metadata:        map[string]interface{}{"cutoff": cutoff.Format(time.RFC3339), "retention_days": policy.RetentionDays},
		}); err != nil {
			return results, err
		}
	}

	return results, nil
}

func hasAnyTag(tags, exceptions []string) bool {
	if len(exceptions) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(exceptions))
	for _, e := range exceptions {
		set[e] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
