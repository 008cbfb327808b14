package strategies

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/storage/sqlite"
)

func TestSparse_RunDelegatesToFullTextSearch(t *testing.T) {
	c, err := sqlite.NewClient(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	rec := memory.NewRecord("tenant-1", "proj-a", "deploys happen every Friday afternoon")
	require.NoError(t, c.Insert(ctx, rec))

	s := &Sparse{Store: c}
	hits, err := s.Run(ctx, search.StrategyRequest{TenantID: "tenant-1", Query: "Friday", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, rec.ID, hits[0].MemoryID)
}

func TestSparse_EmptyQueryReturnsNoResults(t *testing.T) {
	s := &Sparse{Store: nil}
	hits, err := s.Run(context.Background(), search.StrategyRequest{Query: ""})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
