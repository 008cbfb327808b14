package governance

import (
	"context"
	"strings"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
	"github.com/oceanbase/agentmem/pkg/vectorstore"
)

// GraphDeleter is the narrow slice of graphstore.Store the erasure
// cascade needs; accepting the interface (rather than the concrete
// package) keeps pkg/governance free of a hard graphstore dependency for
// callers that never configure one.
type GraphDeleter interface {
	DeleteNode(ctx context.Context, tenantID, nodeID string) error
}

// Eraser implements GDPR Article 17 ("right to be forgotten"): a
// cascade delete of every record traceable to a user identifier across
// storage, the vector index, and the knowledge graph, plus
// pseudonymization (not deletion) of cost-tracking records, grounded on
// retention_service.py's delete_user_data.
type Eraser struct {
	Store       storage.Store
	VectorStore vectorstore.Store // optional; nil skips vector cleanup
	GraphStore  GraphDeleter      // optional; nil skips graph cleanup
	Audit       *AuditLog         // optional; nil skips audit emission
}

// NewEraser builds an Eraser. VectorStore, GraphStore, and Audit may be
// left nil when the caller doesn't run those subsystems.
func NewEraser(store storage.Store, vs vectorstore.Store, gs GraphDeleter, audit *AuditLog) *Eraser {
	return &Eraser{Store: store, VectorStore: vs, GraphStore: gs, Audit: audit}
}

// ErasureResult reports the per-category counts of a EraseUserData call.
type ErasureResult struct {
	MemoriesDeleted     int
	CostLogsAnonymized  int
}

// EraseUserData deletes every memory record whose Source matches
// userIdentifier or whose Content contains it, across every layer, and
// pseudonymizes (rather than deletes) cost-log records attributed to the
// user — matching retention_service.py's "don't delete financial
// records, but anonymize" rule.
func (e *Eraser) EraseUserData(ctx context.Context, tenantID, userIdentifier, deletedBy string) (ErasureResult, error) {
	var result ErasureResult

	records, err := e.Store.List(ctx, storage.ListOptions{TenantID: tenantID})
	if err != nil {
		return result, err
	}

	scope := storage.AccessScope{TenantID: tenantID}
	for _, rec := range records {
		matches := rec.Source == userIdentifier || strings.Contains(rec.Content, userIdentifier)
		if !matches {
			continue
		}

		if rec.MemoryType == memory.TypeCostLog {
			rec.Source = "ANONYMIZED"
			if rec.Metadata == nil {
				rec.Metadata = map[string]interface{}{}
			}
			rec.Metadata["user_anonymized"] = true
			if err := e.Store.Update(ctx, rec, scope); err != nil {
				return result, err
			}
			result.CostLogsAnonymized++
			continue
		}

		if err := e.Store.Delete(ctx, rec.ID, scope); err != nil {
			return result, err
		}
		if e.VectorStore != nil {
			_ = e.VectorStore.Delete(ctx, tenantID, "default", rec.ID)
		}
		if e.GraphStore != nil {
			_ = e.GraphStore.DeleteNode(ctx, tenantID, rec.ID.String())
		}
		result.MemoriesDeleted++
	}

	if e.Audit != nil && (result.MemoriesDeleted > 0 || result.CostLogsAnonymized > 0) {
		if err := e.Audit.Log(ctx, AuditEntry{
			TenantID:       tenantID,
			DataClass:      DataClassEpisodicMemory,
			DeletionReason: ReasonUserRequest,
			DeletedCount:   result.MemoriesDeleted,
			DeletedBy:      deletedBy,
			Metadata: map[string]interface{}{
				"user_identifier":      userIdentifier,
				"memories_deleted":     result.MemoriesDeleted,
				"cost_logs_anonymized": result.CostLogsAnonymized,
			},
		}); err != nil {
			return result, err
		}
	}

	return result, nil
}
