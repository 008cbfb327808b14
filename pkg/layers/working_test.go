package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
)

func TestWorking_AddAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	w := NewWorking(store, "tenant-1", "proj-a", "agent-1", WorkingConfig{})

	_, err := w.Add(ctx, "note one")
	require.NoError(t, err)
	_, err = w.Add(ctx, "note two")
	require.NoError(t, err)

	count, err := w.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestWorking_PromotionCandidatesRequiresImportanceAndUsage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	w := NewWorking(store, "tenant-1", "proj-a", "agent-1", WorkingConfig{ImportanceThreshold: 0.6, UsageThreshold: 2})

	id, err := w.Add(ctx, "candidate", WithImportance(0.9))
	require.NoError(t, err)

	candidates, err := w.PromotionCandidates(ctx)
	require.NoError(t, err)
	assert.Empty(t, candidates, "usage count has not yet cleared the threshold")

	_, err = w.Get(ctx, id)
	require.NoError(t, err)
	_, err = w.Get(ctx, id)
	require.NoError(t, err)

	candidates, err = w.PromotionCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, id, candidates[0].ID)
}

func TestWorking_ConsolidateMergesGroupIntoLongTerm(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	w := NewWorking(store, "tenant-1", "proj-a", "agent-1", WorkingConfig{})
	lt := NewLongTerm(store, "tenant-1", "proj-a", "agent-1", LongTermConfig{})

	id1, err := w.Add(ctx, "the user prefers dark mode", WithImportance(0.5), WithTags("preference"))
	require.NoError(t, err)
	id2, err := w.Add(ctx, "the user asked for a dark theme again", WithImportance(0.7), WithTags("preference", "ui"))
	require.NoError(t, err)

	rec1, err := store.Get(ctx, id1, w.scope())
	require.NoError(t, err)
	rec2, err := store.Get(ctx, id2, w.scope())
	require.NoError(t, err)

	synth := func(ctx context.Context, contents []string) (string, error) {
		return "the user consistently prefers dark mode", nil
	}

	merged, err := w.Consolidate(ctx, []*memory.Record{rec1, rec2}, lt, synth, false, true)
	require.NoError(t, err)
	assert.Equal(t, "the user consistently prefers dark mode", merged.Content)
	assert.InDelta(t, 0.8, merged.Importance, 1e-9) // avg(0.5,0.7)=0.6 + 0.2
	assert.Equal(t, memory.LayerEpisodic, merged.Layer)
	assert.ElementsMatch(t, []string{"preference", "ui"}, merged.Tags)

	sourceIDs, ok := merged.Metadata["source_memory_ids"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{id1.String(), id2.String()}, sourceIDs)

	_, err = store.Get(ctx, id1, w.scope())
	assert.ErrorIs(t, err, memory.ErrNotFound, "tombstone=true should have deleted the source items")
}

func TestConsolidationGroups_GroupsBySimilarity(t *testing.T) {
	a := &memory.Record{Embedding: []float32{1, 0, 0}}
	b := &memory.Record{Embedding: []float32{0.99, 0.01, 0}}
	c := &memory.Record{Embedding: []float32{0, 1, 0}}

	groups := ConsolidationGroups([]*memory.Record{a, b, c})
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}
