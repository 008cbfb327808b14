package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/maintenance"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

type stubReflector struct {
	calls     int
	lastSeeds []uuid.UUID
	result    *memory.Record
	err       error
}

func (s *stubReflector) GenerateReflection(ctx context.Context, tenantID, project, agentID string, seedIDs []uuid.UUID) (*memory.Record, error) {
	s.calls++
	s.lastSeeds = seedIDs
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func insertEpisodic(t *testing.T, store storage.Store, tenantID, project string, importance float64, createdAt time.Time) {
	t.Helper()
	rec := memory.NewRecord(tenantID, project, "an important event")
	rec.Layer = memory.LayerEpisodic
	rec.Importance = importance
	rec.CreatedAt = createdAt
	require.NoError(t, store.Insert(context.Background(), rec))
}

func TestDreamingWorker_GeneratesReflectionFromHighImportanceMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-dream-1", "default"

	for i := 0; i < 5; i++ {
		insertEpisodic(t, store, tenantID, project, 0.8, time.Now().UTC().Add(-2*time.Hour))
	}

	reflector := &stubReflector{result: memory.NewRecord(tenantID, project, "pattern detected")}
	worker := maintenance.NewDreamingWorker(store, reflector, true)

	results, err := worker.RunDreamingCycle(ctx, tenantID, project, "", 24, 0.6, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, reflector.calls)
}

func TestDreamingWorker_DisabledSkips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	worker := maintenance.NewDreamingWorker(store, &stubReflector{}, false)
	results, err := worker.RunDreamingCycle(ctx, "tenant-x", "default", "", 24, 0.6, 20)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDreamingWorker_InsufficientMemoriesSkips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-dream-2", "default"

	for i := 0; i < 2; i++ {
		insertEpisodic(t, store, tenantID, project, 0.8, time.Now().UTC())
	}

	reflector := &stubReflector{result: memory.NewRecord(tenantID, project, "x")}
	worker := maintenance.NewDreamingWorker(store, reflector, true)

	results, err := worker.RunDreamingCycle(ctx, tenantID, project, "", 24, 0.6, 20)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, reflector.calls)
}

func TestDreamingWorker_LookbackWindowExcludesOldMemories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-dream-3", "default"

	for i := 0; i < 3; i++ {
		insertEpisodic(t, store, tenantID, project, 0.8, time.Now().UTC().Add(-2*time.Hour))
	}
	for i := 0; i < 3; i++ {
		insertEpisodic(t, store, tenantID, project, 0.8, time.Now().UTC().Add(-50*time.Hour))
	}

	reflector := &stubReflector{result: memory.NewRecord(tenantID, project, "pattern from recent memories")}
	worker := maintenance.NewDreamingWorker(store, reflector, true)

	results, err := worker.RunDreamingCycle(ctx, tenantID, project, "", 24, 0.6, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, reflector.lastSeeds, 3)
}

func TestDreamingWorker_ImportanceFilterExcludesLowImportance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenantID, project := "tenant-dream-4", "default"

	for i := 0; i < 4; i++ {
		insertEpisodic(t, store, tenantID, project, 0.8, time.Now().UTC().Add(-time.Hour))
	}
	for i := 0; i < 4; i++ {
		insertEpisodic(t, store, tenantID, project, 0.2, time.Now().UTC().Add(-time.Hour))
	}

	reflector := &stubReflector{result: memory.NewRecord(tenantID, project, "pattern")}
	worker := maintenance.NewDreamingWorker(store, reflector, true)

	results, err := worker.RunDreamingCycle(ctx, tenantID, project, "", 24, 0.6, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, reflector.lastSeeds, 4)
}
