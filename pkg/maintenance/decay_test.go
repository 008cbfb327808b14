package maintenance_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/maintenance"
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

func TestDecayWorker_BasicCycleReducesImportance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID := "tenant-decay-1"

	tenDaysAgo := time.Now().UTC().AddDate(0, 0, -10)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		rec := memory.NewRecord(tenantID, "default", "test memory")
		rec.Layer = memory.LayerEpisodic
		rec.Importance = 0.9
		rec.CreatedAt = tenDaysAgo
		rec.LastAccessedAt = tenDaysAgo
		require.NoError(t, store.Insert(ctx, rec))
		ids = append(ids, rec.ID)
	}

	worker := maintenance.NewDecayWorker(store)
	stats, err := worker.RunDecayCycle(ctx, []string{tenantID}, 0.05, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTenants)
	assert.Equal(t, 5, stats.TotalUpdated)

	for _, id := range ids {
		got, err := store.Get(ctx, id, storage.AccessScope{TenantID: tenantID})
		require.NoError(t, err)
		assert.Less(t, got.Importance, 0.9)
		assert.Greater(t, got.Importance, 0.0)
	}
}

func TestDecayWorker_RecentlyAccessedDecaysSlowerThanStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID := "tenant-decay-2"

	recent := memory.NewRecord(tenantID, "default", "recently accessed memory")
	recent.Layer = memory.LayerEpisodic
	recent.Importance = 0.8
	recent.CreatedAt = time.Now().UTC().AddDate(0, 0, -30)
	recent.LastAccessedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Insert(ctx, recent))

	stale := memory.NewRecord(tenantID, "default", "stale memory")
	stale.Layer = memory.LayerEpisodic
	stale.Importance = 0.8
	stale.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	stale.LastAccessedAt = time.Now().UTC().AddDate(0, 0, -60)
	require.NoError(t, store.Insert(ctx, stale))

	worker := maintenance.NewDecayWorker(store)
	_, err := worker.RunDecayCycle(ctx, []string{tenantID}, 0.02, true)
	require.NoError(t, err)

	gotRecent, err := store.Get(ctx, recent.ID, storage.AccessScope{TenantID: tenantID})
	require.NoError(t, err)
	gotStale, err := store.Get(ctx, stale.ID, storage.AccessScope{TenantID: tenantID})
	require.NoError(t, err)

	assert.Less(t, gotStale.Importance, gotRecent.Importance)
	assert.GreaterOrEqual(t, gotStale.Importance, maintenance.DefaultDecayFloor)
}

func TestDecayWorker_MultipleTenantsAllProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantIDs := []string{"tenant-a", "tenant-b", "tenant-c"}

	fiveDaysAgo := time.Now().UTC().AddDate(0, 0, -5)
	for _, tenantID := range tenantIDs {
		for i := 0; i < 3; i++ {
			rec := memory.NewRecord(tenantID, "default", "memory")
			rec.Layer = memory.LayerEpisodic
			rec.Importance = 0.85
			rec.CreatedAt = fiveDaysAgo
			rec.LastAccessedAt = fiveDaysAgo
			require.NoError(t, store.Insert(ctx, rec))
		}
	}

	worker := maintenance.NewDecayWorker(store)
	stats, err := worker.RunDecayCycle(ctx, tenantIDs, 0.03, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTenants)
	assert.Equal(t, 9, stats.TotalUpdated)
}

func TestDecayWorker_ImportanceFloorNeverCrossed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID := "tenant-floor"

	rec := memory.NewRecord(tenantID, "default", "low importance memory")
	rec.Layer = memory.LayerEpisodic
	rec.Importance = 0.02
	rec.CreatedAt = time.Now().UTC().AddDate(0, 0, -30)
	rec.LastAccessedAt = rec.CreatedAt
	require.NoError(t, store.Insert(ctx, rec))

	worker := maintenance.NewDecayWorker(store)
	for i := 0; i < 5; i++ {
		_, err := worker.RunDecayCycle(ctx, []string{tenantID}, 0.05, false)
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, rec.ID, storage.AccessScope{TenantID: tenantID})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Importance, maintenance.DefaultDecayFloor)
}

func TestDecayWorker_DiscoversTenantsWhenNoneGiven(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-discovered", "default", "memory")
	rec.Layer = memory.LayerEpisodic
	rec.Importance = 0.7
	require.NoError(t, store.Insert(ctx, rec))

	worker := maintenance.NewDecayWorker(store)
	stats, err := worker.RunDecayCycle(ctx, nil, 0.02, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTenants)
	assert.Equal(t, 1, stats.TotalUpdated)
}

func TestDecayWorker_EmptyDatabaseIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	worker := maintenance.NewDecayWorker(store)
	stats, err := worker.RunDecayCycle(ctx, []string{}, 0.02, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTenants)
	assert.Equal(t, 0, stats.TotalUpdated)
}
