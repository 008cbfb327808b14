package governance_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/governance"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	c, err := sqlite.NewClient(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRetentionService_CleanupExpiredDeletesOldEpisodicMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := memory.NewRecord("tenant-1", "proj-a", "ancient episode")
	old.Layer = memory.LayerEpisodic
	old.CreatedAt = time.Now().UTC().AddDate(-2, 0, 0)
	require.NoError(t, store.Insert(ctx, old))

	fresh := memory.NewRecord("tenant-1", "proj-a", "recent episode")
	fresh.Layer = memory.LayerEpisodic
	require.NoError(t, store.Insert(ctx, fresh))

	svc := governance.NewRetentionService(store, governance.NewAuditLog(store))
	result, err := svc.CleanupExpired(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result[governance.DataClassEpisodicMemory])

	remaining, err := store.List(ctx, storage.ListOptions{TenantID: "tenant-1", Layer: memory.LayerEpisodic})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

func TestRetentionService_ExceptionTagExemptsFromDeletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	held := memory.NewRecord("tenant-1", "proj-a", "legal hold")
	held.Layer = memory.LayerEpisodic
	held.Tags = []string{"legal-hold"}
	held.CreatedAt = time.Now().UTC().AddDate(-2, 0, 0)
	require.NoError(t, store.Insert(ctx, held))

	svc := governance.NewRetentionService(store, nil)
	svc.Policy[governance.DataClassEpisodicMemory] = governance.RetentionPolicy{
		DataClass: governance.DataClassEpisodicMemory, RetentionDays: 365, Exceptions: []string{"legal-hold"},
	}

	result, err := svc.CleanupExpired(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result[governance.DataClassEpisodicMemory])
}

func TestRetentionService_NeverDeletePolicySkipsCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	svc := governance.NewRetentionService(store, nil)
	svc.Policy[governance.DataClassEpisodicMemory] = governance.RetentionPolicy{
		DataClass: governance.DataClassEpisodicMemory, RetentionDays: -1,
	}

	result, err := svc.CleanupExpired(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, result)
}
