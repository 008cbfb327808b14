package strategies

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/vectorstore/memvec"
)

func mustInsertVector(t *testing.T, store *memvec.Store, tenantID string, vec []float32) uuid.UUID {
	t.Helper()
	return mustInsertVectorInto(t, store, tenantID, DefaultVectorSpace, vec)
}

func mustInsertVectorInto(t *testing.T, store *memvec.Store, tenantID, space string, vec []float32) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.Upsert(context.Background(), tenantID, space, id, vec))
	return id
}
