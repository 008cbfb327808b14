package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// DeletionReason records why a deletion happened, for the audit trail.
type DeletionReason string

const (
	ReasonRetentionPolicy   DeletionReason = "retention_policy"
	ReasonUserRequest       DeletionReason = "user_request"
	ReasonTenantDeletion    DeletionReason = "tenant_deletion"
	ReasonDataQuality       DeletionReason = "data_quality"
	ReasonLegalRequirement  DeletionReason = "legal_requirement"
	ReasonAdminAction       DeletionReason = "admin_action"
)

// AuditEntry is one deletion/erasure operation's audit record.
type AuditEntry struct {
	TenantID       string
	DataClass      DataClass
	DeletionReason DeletionReason
	DeletedCount   int
	DeletedBy      string
	Metadata       map[string]interface{}
}

// AuditLog persists AuditEntry rows as ordinary memory.Record values
// (memory_type="audit", a reserved layer-independent namespace) through
// the same storage.Store every other layer uses, per SPEC_FULL.md §6's
// framing of audit rows as ordinary structured records rather than a
// bespoke audit store.
type AuditLog struct {
	Store storage.Store
}

// NewAuditLog wraps store for audit-row persistence.
func NewAuditLog(store storage.Store) *AuditLog {
	return &AuditLog{Store: store}
}

// Log persists one audit entry as a new record and returns the storage
// error, if any; the new record's ID is not returned.
func (a *AuditLog) Log(ctx context.Context, entry AuditEntry) error {
	summary, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("governance.AuditLog: marshal metadata: %w", err)
	}

	rec := memory.NewRecord(entry.TenantID, "", fmt.Sprintf("deletion audit: %s/%s deleted=%d", entry.DataClass, entry.DeletionReason, entry.DeletedCount))
	rec.Layer = memory.LayerSystem
	rec.MemoryType = memory.TypeAudit
	rec.Source = entry.DeletedBy
	rec.Metadata = map[string]interface{}{
		"data_class":      string(entry.DataClass),
		"deletion_reason": string(entry.DeletionReason),
		"deleted_count":   entry.DeletedCount,
		"deleted_by":      entry.DeletedBy,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"detail":          json.RawMessage(summary),
	}
	rec.InfoClass = memory.InfoClassInternal

	return a.Store.Insert(ctx, rec)
}
