package oceanbase

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Client{db: db, table: "memory_records"}, mock
}

func TestClient_InsertExecutesParameterizedStatement(t *testing.T) {
	c, mock := newMockClient(t)
	ctx := context.Background()

	rec := memory.NewRecord("tenant-1", "proj-a", "hello world")
	mock.ExpectExec("INSERT INTO memory_records").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, c.Insert(ctx, rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_GetReturnsNotFoundOnNoRows(t *testing.T) {
	c, mock := newMockClient(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.|\n)* FROM memory_records WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := c.Get(ctx, uuid.New(), storage.AccessScope{})
	assert.ErrorIs(t, err, memory.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_GetScansStoredRecord(t *testing.T) {
	c, mock := newMockClient(t)
	ctx := context.Background()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(columnsForTest()).AddRow(
		id.String(), "tenant-1", "proj-a", "agent-1", "",
		"hello", string(memory.LayerEpisodic), string(memory.TypeText), "",
		0.5, 1.0, "[]", "{}", "[]", "[]",
		now, now, now, nil,
		0, 0, 1, "internal", "[]", "{}",
	)
	mock.ExpectQuery("SELECT (.|\n)* FROM memory_records WHERE id = \\?").WillReturnRows(rows)

	rec, err := c.Get(ctx, id, storage.AccessScope{})
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Content)
	assert.Equal(t, memory.LayerEpisodic, rec.Layer)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_DeleteReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	c, mock := newMockClient(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM memory_records WHERE id = \\?").WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.Delete(ctx, uuid.New(), storage.AccessScope{})
	assert.ErrorIs(t, err, memory.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_FullTextSearchRanksByOccurrenceCount(t *testing.T) {
	c, mock := newMockClient(t)
	ctx := context.Background()

	now := time.Now()
	rows := sqlmock.NewRows(columnsForTest()).
		AddRow(uuid.New().String(), "tenant-1", "proj-a", "", "", "budget budget plan", string(memory.LayerEpisodic), string(memory.TypeText), "", 0.5, 1.0, "[]", "{}", "[]", "[]", now, now, now, nil, 0, 0, 1, "internal", "[]", "{}").
		AddRow(uuid.New().String(), "tenant-1", "proj-a", "", "", "budget review", string(memory.LayerEpisodic), string(memory.TypeText), "", 0.5, 1.0, "[]", "{}", "[]", "[]", now, now, now, nil, 0, 0, 1, "internal", "[]", "{}")
	mock.ExpectQuery("SELECT (.|\n)* FROM memory_records WHERE (.|\n)*LIKE").WillReturnRows(rows)

	out, err := c.FullTextSearch(ctx, storage.ListOptions{TenantID: "tenant-1"}, "budget")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "budget budget plan", out[0].Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func columnsForTest() []string {
	return []string{
		"id", "tenant_id", "project", "agent_id", "session_id", "content", "layer",
		"memory_type", "source", "importance", "strength", "tags", "metadata", "embedding",
		"embeddings", "created_at", "modified_at", "last_accessed_at", "expires_at",
		"access_count", "usage_count", "version", "information_class", "provenance", "sync_metadata",
	}
}
