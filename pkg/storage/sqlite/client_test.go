package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	c, err := NewClient(Config{DBPath: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_InsertGetRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-1", "proj-a", "hello world")
	rec.Tags = []string{"greeting", "demo"}
	rec.Metadata = map[string]interface{}{"k": "v"}
	rec.Embedding = []float32{0.1, 0.2, 0.3}

	require.NoError(t, c.Insert(ctx, rec))

	got, err := c.Get(ctx, rec.ID, storage.AccessScope{})
	require.NoError(t, err)
	assert.Equal(t, rec.Content, got.Content)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.Equal(t, rec.TenantID, got.TenantID)
	assert.Equal(t, len(rec.Embedding), len(got.Embedding))
}

func TestClient_GetNotFound(t *testing.T) {
	c := newTestClient(t)
	rec := memory.NewRecord("tenant-1", "proj-a", "x")

	_, err := c.Get(context.Background(), rec.ID, storage.AccessScope{})
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestClient_GetWrongTenantIsNotFound(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-1", "proj-a", "secret")
	require.NoError(t, c.Insert(ctx, rec))

	_, err := c.Get(ctx, rec.ID, storage.AccessScope{TenantID: "tenant-2"})
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestClient_UpdateAndDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-1", "proj-a", "v1")
	require.NoError(t, c.Insert(ctx, rec))

	rec.Content = "v2"
	rec.BumpVersion(rec.ModifiedAt)
	require.NoError(t, c.Update(ctx, rec, storage.AccessScope{}))

	got, err := c.Get(ctx, rec.ID, storage.AccessScope{})
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, int64(2), got.Version)

	require.NoError(t, c.Delete(ctx, rec.ID, storage.AccessScope{}))
	_, err = c.Get(ctx, rec.ID, storage.AccessScope{})
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestClient_ListFiltersByLayerAndTenant(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a := memory.NewRecord("tenant-1", "proj", "a")
	a.Layer = memory.LayerWorking
	b := memory.NewRecord("tenant-1", "proj", "b")
	b.Layer = memory.LayerEpisodic
	other := memory.NewRecord("tenant-2", "proj", "c")
	other.Layer = memory.LayerWorking

	require.NoError(t, c.Insert(ctx, a))
	require.NoError(t, c.Insert(ctx, b))
	require.NoError(t, c.Insert(ctx, other))

	results, err := c.List(ctx, storage.ListOptions{TenantID: "tenant-1", Layer: memory.LayerWorking})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.ID, results[0].ID)
}

func TestClient_DeleteMatchingCascadesByTenant(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Insert(ctx, memory.NewRecord("tenant-erase", "proj", "x")))
	}
	require.NoError(t, c.Insert(ctx, memory.NewRecord("tenant-keep", "proj", "y")))

	n, err := c.DeleteMatching(ctx, storage.ListOptions{TenantID: "tenant-erase"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	remaining, err := c.Count(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestClient_FullTextSearchRanksByOccurrenceCount(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	strong := memory.NewRecord("tenant-1", "proj-a", "error error error: disk full")
	weak := memory.NewRecord("tenant-1", "proj-a", "an error occurred")
	unrelated := memory.NewRecord("tenant-1", "proj-a", "all systems nominal")
	require.NoError(t, c.Insert(ctx, strong))
	require.NoError(t, c.Insert(ctx, weak))
	require.NoError(t, c.Insert(ctx, unrelated))

	results, err := c.FullTextSearch(ctx, storage.ListOptions{TenantID: "tenant-1"}, "error")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, strong.ID, results[0].ID)
	assert.Equal(t, weak.ID, results[1].ID)
}
