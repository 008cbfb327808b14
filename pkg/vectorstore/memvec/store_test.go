package memvec

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
)

func TestStore_UpsertSearch(t *testing.T) {
	s := New()
	ctx := context.Background()

	idA := uuid.New()
	idB := uuid.New()
	require.NoError(t, s.Upsert(ctx, "t1", "default", idA, []float32{1, 0, 0}))
	require.NoError(t, s.Upsert(ctx, "t1", "default", idB, []float32{0, 1, 0}))

	matches, err := s.Search(ctx, "t1", "default", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, idA, matches[0].RecordID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
}

func TestStore_TenantIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.Upsert(ctx, "t1", "default", id, []float32{1, 0}))

	matches, err := s.Search(ctx, "t2", "default", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Upsert(ctx, "t1", "default", id, []float32{1, 0, 0}))
	err := s.Upsert(ctx, "t1", "default", id, []float32{1, 0})
	assert.ErrorIs(t, err, memory.ErrDimensionMismatch)
}

func TestStore_DeleteTenant(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, s.Upsert(ctx, "t1", "default", id, []float32{1, 0}))

	require.NoError(t, s.DeleteTenant(ctx, "t1"))

	matches, err := s.Search(ctx, "t1", "default", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
