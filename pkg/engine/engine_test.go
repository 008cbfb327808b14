package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/cache/memcache"
	"github.com/oceanbase/agentmem/pkg/engine"
	"github.com/oceanbase/agentmem/pkg/graphstore/memgraph"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
	"github.com/oceanbase/agentmem/pkg/vectorstore/memvec"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := sqlite.NewClient(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng := engine.New(store, memvec.New(), memgraph.New(), memcache.New(0), nil, nil)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestEngine_StoreAssignsLayerByImportanceHeuristic(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	rec, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "a trivial note", engine.WithImportance(0.2))
	require.NoError(t, err)
	assert.Equal(t, memory.LayerSensory, rec.Layer)

	rec2, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "an important fact", engine.WithImportance(0.9))
	require.NoError(t, err)
	assert.Equal(t, memory.LayerEpisodic, rec2.Layer)
}

func TestEngine_StoreRespectsExplicitLayerOverride(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	rec, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "forced working memory",
		engine.WithImportance(0.1), engine.WithLayer(memory.LayerWorking))
	require.NoError(t, err)
	assert.Equal(t, memory.LayerWorking, rec.Layer)
}

func TestEngine_StoreRejectsRestrictedEpisodicContent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "secret",
		engine.WithImportance(0.9), engine.WithInfoClass(memory.InfoClassRestricted))
	assert.ErrorIs(t, err, memory.ErrSecurityPolicyViolation)
}

func TestEngine_QueryFindsStoredMemory(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "the deploy key rotates every monday",
		engine.WithImportance(0.9))
	require.NoError(t, err)

	results, err := eng.Query(ctx, "tenant-1", "proj-a", "agent-1", "deploy key rotation", engine.WithLimit(5))
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestEngine_ConsolidateWithoutPromotionCandidatesSucceeds(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "the team prefers tabs over spaces",
			engine.WithImportance(0.6))
		require.NoError(t, err)
	}

	merged, err := eng.Consolidate(ctx, "tenant-1", "proj-a", "agent-1", false, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, merged, 0)
}

func TestEngine_GetStatisticsCountsByLayer(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "low importance note", engine.WithImportance(0.1))
	require.NoError(t, err)
	_, err = eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "high importance fact", engine.WithImportance(0.9))
	require.NoError(t, err)

	stats, err := eng.GetStatistics(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CountByLayer[memory.LayerSensory])
	assert.Equal(t, int64(1), stats.CountByLayer[memory.LayerEpisodic])
	assert.Equal(t, int64(2), stats.Total)
}

func TestEngine_ClearRemovesAllTenantMemories(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Store(ctx, "tenant-1", "proj-a", "agent-1", "ephemeral note", engine.WithImportance(0.5))
	require.NoError(t, err)

	require.NoError(t, eng.Clear(ctx, "tenant-1"))

	stats, err := eng.GetStatistics(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
}
