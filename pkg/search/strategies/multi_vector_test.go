package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/search"
	"github.com/oceanbase/agentmem/pkg/vectorstore/memvec"
)

func TestMultiVector_MergesAcrossSpacesByMaxScore(t *testing.T) {
	proseStore := memvec.New()
	codeStore := memvec.New()
	ctx := context.Background()

	proseID := mustInsertVectorInto(t, proseStore, "tenant-1", "prose", []float32{1, 0})
	codeID := mustInsertVectorInto(t, codeStore, "tenant-1", "code", []float32{0, 1})

	mv := &MultiVector{Spaces: []VectorSpace{
		{Name: "prose", Store: proseStore, Embedder: &fakeEmbedder{vec: []float32{1, 0}, dim: 2}},
		{Name: "code", Store: codeStore, Embedder: &fakeEmbedder{vec: []float32{0, 1}, dim: 2}},
	}}

	hits, err := mv.Run(ctx, search.StrategyRequest{TenantID: "tenant-1", Query: "lookup", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	ids := map[string]bool{}
	for _, h := range hits {
		ids[h.MemoryID.String()] = true
	}
	assert.True(t, ids[proseID.String()])
	assert.True(t, ids[codeID.String()])
}

func TestMultiVector_NoSpacesReturnsEmpty(t *testing.T) {
	mv := &MultiVector{}
	hits, err := mv.Run(context.Background(), search.StrategyRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
