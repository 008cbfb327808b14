package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
)

func TestLongTerm_AddMemoryDefaultsImportanceByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	lt := NewLongTerm(store, "tenant-1", "proj-a", "agent-1", LongTermConfig{})

	episodic, err := lt.AddMemory(ctx, "went to the park", false)
	require.NoError(t, err)
	assert.Equal(t, DefaultEpisodicImportance, episodic.Importance)
	assert.Equal(t, memory.LayerEpisodic, episodic.Layer)

	semantic, err := lt.AddMemory(ctx, "parks contain trees", true)
	require.NoError(t, err)
	assert.Equal(t, DefaultSemanticImportance, semantic.Importance)
	assert.Equal(t, memory.LayerSemantic, semantic.Layer)
}

func TestLongTerm_UpgradeToSemanticLinksAncestorAndBumpsImportance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	lt := NewLongTerm(store, "tenant-1", "proj-a", "agent-1", LongTermConfig{})

	episodic, err := lt.AddMemory(ctx, "visited the park on Tuesday", false, WithImportance(0.5))
	require.NoError(t, err)

	semantic, err := lt.UpgradeToSemantic(ctx, episodic.ID, "the user regularly visits parks")
	require.NoError(t, err)
	assert.Equal(t, "the user regularly visits parks", semantic.Content)
	assert.InDelta(t, 0.6, semantic.Importance, 1e-9)
	assert.Equal(t, episodic.ID.String(), semantic.Metadata["derived_from_episodic"])
}

func TestLongTerm_CleanupSweepsBelowFloor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	lt := NewLongTerm(store, "tenant-1", "proj-a", "agent-1", LongTermConfig{CleanupFloor: 0.2})

	low, err := lt.AddMemory(ctx, "noise", false, WithImportance(0.05))
	require.NoError(t, err)
	keep, err := lt.AddMemory(ctx, "signal", false, WithImportance(0.8))
	require.NoError(t, err)

	removed, err := lt.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = lt.Get(ctx, low.ID)
	assert.ErrorIs(t, err, memory.ErrNotFound)
	_, err = lt.Get(ctx, keep.ID)
	assert.NoError(t, err)
}
