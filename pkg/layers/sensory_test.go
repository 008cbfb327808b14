package layers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestSensory_AddAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewSensory(store, "tenant-1", "proj-a", "agent-1", SensoryConfig{})

	_, err := s.Add(ctx, "first")
	require.NoError(t, err)
	_, err = s.Add(ctx, "second")
	require.NoError(t, err)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
}

func TestSensory_CapacityEvictsOldest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewSensory(store, "tenant-1", "proj-a", "agent-1", SensoryConfig{Capacity: 2})

	id1, err := s.Add(ctx, "one")
	require.NoError(t, err)
	_, err = s.Add(ctx, "two")
	require.NoError(t, err)
	_, err = s.Add(ctx, "three")
	require.NoError(t, err)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	for _, rec := range recent {
		assert.NotEqual(t, id1, rec.ID)
	}
}

func TestSensory_SweepExpiresOldItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewSensory(store, "tenant-1", "proj-a", "agent-1", SensoryConfig{Retention: 10 * time.Millisecond})

	_, err := s.Add(ctx, "stale")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	removed, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSensory_PromoteMovesToWorking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := NewSensory(store, "tenant-1", "proj-a", "agent-1", SensoryConfig{PromotionThreshold: 0.5})
	w := NewWorking(store, "tenant-1", "proj-a", "agent-1", WorkingConfig{})

	id, err := s.Add(ctx, "important", WithImportance(0.9))
	require.NoError(t, err)

	candidates, err := s.PromotionCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, id, candidates[0].ID)

	promoted, err := s.Promote(ctx, id, w)
	require.NoError(t, err)
	assert.Equal(t, memory.LayerWorking, promoted.Layer)

	_, err = store.Get(ctx, id, storage.AccessScope{TenantID: "tenant-1", AgentID: "agent-1"})
	assert.ErrorIs(t, err, memory.ErrNotFound)

	got, err := w.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "important", got.Content)
}
