// Package postgres implements storage.Store on top of PostgreSQL, the
// production multi-node backend behind the single-file SQLite reference
// adapter; embeddings are stored as JSONB and no vector extension is
// used. Schema and query shape mirror pkg/storage/sqlite's Client (same
// columns, same JSON encoding of variable-shape fields) with three
// differences: numbered $N placeholders instead of "?", JSONB columns
// instead of SQLite's untyped TEXT, and native ts_rank full-text search.
//
// Grounded on the teacher's pkg/storage/postgres/client.go (this
// module's lib/pq usage, connection setup, and table-init pattern),
// generalized from its single-table embedding-search schema to the
// full memory.Record CRUD contract storage.Store requires — the same
// generalization pkg/storage/sqlite already made from the teacher's
// SQLite client.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// Config configures a Client.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	TableName string // defaults to "memory_records"
}

// Client implements storage.Store backed by PostgreSQL.
type Client struct {
	db    *sql.DB
	table string
}

// NewClient opens a PostgreSQL connection and ensures the record table
// and its indexes exist.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memory_records"
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, memory.WrapOp("postgres.NewClient", err)
	}
	if err := db.Ping(); err != nil {
		return nil, memory.WrapOp("postgres.NewClient", err)
	}

	c := &Client{db: db, table: cfg.TableName}
	if err := c.initTables(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) initTables(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			project TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			layer TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			strength DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			tags JSONB,
			metadata JSONB,
			embedding JSONB,
			embeddings JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			modified_at TIMESTAMPTZ NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			access_count BIGINT NOT NULL DEFAULT 0,
			usage_count BIGINT NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			information_class TEXT NOT NULL DEFAULT 'internal',
			provenance JSONB,
			sync_metadata JSONB
		)
	`, c.table)
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return memory.WrapOp("postgres.initTables", err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_tenant_layer ON %s(tenant_id, layer)", c.table, c.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_tenant_agent ON %s(tenant_id, agent_id)", c.table, c.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)", c.table, c.table),
	}
	for _, q := range indexes {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return memory.WrapOp("postgres.initTables", err)
		}
	}
	return nil
}

// Insert implements storage.Store.
func (c *Client) Insert(ctx context.Context, rec *memory.Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}
	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}
	embeddings, err := json.Marshal(rec.Embeddings)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}
	provenance, err := json.Marshal(rec.Provenance)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}
	syncMeta, err := json.Marshal(rec.SyncMetadata)
	if err != nil {
		return memory.WrapOp("postgres.Insert", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, tenant_id, project, agent_id, session_id, content, layer,
			memory_type, source, importance, strength, tags, metadata,
			embedding, embeddings, created_at, modified_at, last_accessed_at,
			expires_at, access_count, usage_count, version, information_class,
			provenance, sync_metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	`, c.table)

	_, err = c.db.ExecContext(ctx, query,
		rec.ID.String(), rec.TenantID, rec.Project, rec.AgentID, rec.SessionID,
		rec.Content, string(rec.Layer), string(rec.MemoryType), rec.Source,
		rec.Importance, rec.Strength, string(tags), string(metadata),
		string(embedding), string(embeddings), rec.CreatedAt, rec.ModifiedAt,
		rec.LastAccessedAt, nullableTime(rec.ExpiresAt), rec.AccessCount,
		rec.UsageCount, rec.Version, string(rec.InfoClass), string(provenance),
		string(syncMeta),
	)
	if err != nil {
		return memory.WrapOp("postgres.Insert", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// scopeClause appends tenant/agent predicates starting at $argIndex,
// returning the clause text and the next free placeholder index.
func scopeClause(scope storage.AccessScope, args []interface{}, argIndex int) (string, []interface{}, int) {
	clause := ""
	if scope.TenantID != "" {
		clause += fmt.Sprintf(" AND tenant_id = $%d", argIndex)
		args = append(args, scope.TenantID)
		argIndex++
	}
	if scope.AgentID != "" {
		clause += fmt.Sprintf(" AND agent_id = $%d", argIndex)
		args = append(args, scope.AgentID)
		argIndex++
	}
	return clause, args, argIndex
}

// Get implements storage.Store.
func (c *Client) Get(ctx context.Context, id uuid.UUID, scope storage.AccessScope) (*memory.Record, error) {
	args := []interface{}{id.String()}
	clause, args, _ := scopeClause(scope, args, 2)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1%s", selectColumns, c.table, clause)
	row := c.db.QueryRowContext(ctx, query, args...)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, memory.WrapOp("postgres.Get", memory.ErrNotFound)
	}
	if err != nil {
		return nil, memory.WrapOp("postgres.Get", err)
	}
	return rec, nil
}

// Update implements storage.Store, writing the full record back.
func (c *Client) Update(ctx context.Context, rec *memory.Record, scope storage.AccessScope) error {
	tags, _ := json.Marshal(rec.Tags)
	metadata, _ := json.Marshal(rec.Metadata)
	embedding, _ := json.Marshal(rec.Embedding)
	embeddings, _ := json.Marshal(rec.Embeddings)
	provenance, _ := json.Marshal(rec.Provenance)
	syncMeta, _ := json.Marshal(rec.SyncMetadata)

	args := []interface{}{
		rec.Project, rec.AgentID, rec.SessionID, rec.Content, string(rec.Layer),
		string(rec.MemoryType), rec.Source, rec.Importance, rec.Strength,
		string(tags), string(metadata), string(embedding), string(embeddings),
		rec.ModifiedAt, rec.LastAccessedAt, nullableTime(rec.ExpiresAt),
		rec.AccessCount, rec.UsageCount, rec.Version, string(rec.InfoClass),
		string(provenance), string(syncMeta), rec.ID.String(),
	}
	clause, args, _ := scopeClause(scope, args, 24)

	query := fmt.Sprintf(`
		UPDATE %s SET
			project=$1, agent_id=$2, session_id=$3, content=$4, layer=$5,
			memory_type=$6, source=$7, importance=$8, strength=$9, tags=$10,
			metadata=$11, embedding=$12, embeddings=$13, modified_at=$14,
			last_accessed_at=$15, expires_at=$16, access_count=$17, usage_count=$18,
			version=$19, information_class=$20, provenance=$21, sync_metadata=$22
		WHERE id = $23%s
	`, c.table, clause)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memory.WrapOp("postgres.Update", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("postgres.Update", err)
	}
	if n == 0 {
		return memory.WrapOp("postgres.Update", memory.ErrNotFound)
	}
	return nil
}

// Delete implements storage.Store.
func (c *Client) Delete(ctx context.Context, id uuid.UUID, scope storage.AccessScope) error {
	args := []interface{}{id.String()}
	clause, args, _ := scopeClause(scope, args, 2)

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1%s", c.table, clause)
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memory.WrapOp("postgres.Delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("postgres.Delete", err)
	}
	if n == 0 {
		return memory.WrapOp("postgres.Delete", memory.ErrNotFound)
	}
	return nil
}

// buildListClause returns a WHERE clause starting at $1, its args, and
// the next free placeholder index.
func buildListClause(opts storage.ListOptions) (string, []interface{}, int) {
	clause := "WHERE 1=1"
	var args []interface{}
	idx := 1
	if opts.TenantID != "" {
		clause += fmt.Sprintf(" AND tenant_id = $%d", idx)
		args = append(args, opts.TenantID)
		idx++
	}
	if opts.Project != "" {
		clause += fmt.Sprintf(" AND project = $%d", idx)
		args = append(args, opts.Project)
		idx++
	}
	if opts.AgentID != "" {
		clause += fmt.Sprintf(" AND agent_id = $%d", idx)
		args = append(args, opts.AgentID)
		idx++
	}
	if opts.Layer != "" {
		clause += fmt.Sprintf(" AND layer = $%d", idx)
		args = append(args, string(opts.Layer))
		idx++
	}
	return clause, args, idx
}

// List implements storage.Store.
func (c *Client) List(ctx context.Context, opts storage.ListOptions) ([]*memory.Record, error) {
	clause, args, idx := buildListClause(opts)
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY created_at DESC", selectColumns, c.table, clause)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, opts.Limit)
		idx++
		if opts.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", idx)
			args = append(args, opts.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.WrapOp("postgres.List", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("postgres.List", err)
		}
		out = append(out, rec)
	}
	if len(opts.Tags) > 0 {
		out = filterRecordsByTags(out, opts.Tags)
	}
	return out, rows.Err()
}

// Count implements storage.Store.
func (c *Client) Count(ctx context.Context, opts storage.ListOptions) (int64, error) {
	clause, args, _ := buildListClause(opts)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", c.table, clause)
	var n int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, memory.WrapOp("postgres.Count", err)
	}
	return n, nil
}

// DeleteMatching implements storage.Store.
func (c *Client) DeleteMatching(ctx context.Context, opts storage.ListOptions) (int64, error) {
	clause, args, _ := buildListClause(opts)
	query := fmt.Sprintf("DELETE FROM %s %s", c.table, clause)
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, memory.WrapOp("postgres.DeleteMatching", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, memory.WrapOp("postgres.DeleteMatching", err)
	}
	log.Debug().Int64("deleted", n).Str("table", c.table).Msg("bulk delete matched records")
	return n, nil
}

// FullTextSearch implements storage.Store using Postgres's native
// full-text search (to_tsvector/plainto_tsquery), ranked with ts_rank —
// Postgres has relevance-ordered text search built in, so this does not
// need SQLite's in-memory LIKE-scan fallback.
func (c *Client) FullTextSearch(ctx context.Context, opts storage.ListOptions, query string) ([]*memory.Record, error) {
	if query == "" {
		return nil, nil
	}
	clause, args, idx := buildListClause(opts)
	tsqueryIdx := idx
	clause += fmt.Sprintf(" AND to_tsvector('english', content) @@ plainto_tsquery('english', $%d)", tsqueryIdx)
	args = append(args, query)
	idx++

	sqlQuery := fmt.Sprintf(
		"SELECT %s FROM %s %s ORDER BY ts_rank(to_tsvector('english', content), plainto_tsquery('english', $%d)) DESC",
		selectColumns, c.table, clause, tsqueryIdx,
	)
	if opts.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, opts.Limit)
	}

	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, memory.WrapOp("postgres.FullTextSearch", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("postgres.FullTextSearch", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DistinctTenantIDs implements storage.Store.
func (c *Client) DistinctTenantIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT tenant_id FROM %s", c.table)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, memory.WrapOp("postgres.DistinctTenantIDs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, memory.WrapOp("postgres.DistinctTenantIDs", err)
		}
		out = append(out, tenantID)
	}
	return out, rows.Err()
}

// Close implements storage.Store.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

const selectColumns = `id, tenant_id, project, agent_id, session_id, content, layer,
	memory_type, source, importance, strength, tags, metadata, embedding,
	embeddings, created_at, modified_at, last_accessed_at, expires_at,
	access_count, usage_count, version, information_class, provenance, sync_metadata`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s rowScanner) (*memory.Record, error) {
	var rec memory.Record
	var idStr, layer, memType, infoClass string
	var tagsJSON, metadataJSON, embeddingJSON, embeddingsJSON, provenanceJSON, syncMetaJSON sql.NullString
	var expiresAt sql.NullTime

	err := s.Scan(
		&idStr, &rec.TenantID, &rec.Project, &rec.AgentID, &rec.SessionID,
		&rec.Content, &layer, &memType, &rec.Source, &rec.Importance,
		&rec.Strength, &tagsJSON, &metadataJSON, &embeddingJSON, &embeddingsJSON,
		&rec.CreatedAt, &rec.ModifiedAt, &rec.LastAccessedAt, &expiresAt,
		&rec.AccessCount, &rec.UsageCount, &rec.Version, &infoClass,
		&provenanceJSON, &syncMetaJSON,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("scanRecord: parse id: %w", err)
	}
	rec.ID = id
	rec.Layer = memory.Layer(layer)
	rec.MemoryType = memory.Type(memType)
	rec.InfoClass = memory.InfoClass(infoClass)

	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &rec.Tags); err != nil {
			return nil, fmt.Errorf("scanRecord: parse tags: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("scanRecord: parse metadata: %w", err)
		}
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" && embeddingJSON.String != "null" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("scanRecord: parse embedding: %w", err)
		}
	}
	if embeddingsJSON.Valid && embeddingsJSON.String != "" && embeddingsJSON.String != "null" {
		if err := json.Unmarshal([]byte(embeddingsJSON.String), &rec.Embeddings); err != nil {
			return nil, fmt.Errorf("scanRecord: parse embeddings: %w", err)
		}
	}
	if provenanceJSON.Valid && provenanceJSON.String != "" && provenanceJSON.String != "null" {
		if err := json.Unmarshal([]byte(provenanceJSON.String), &rec.Provenance); err != nil {
			return nil, fmt.Errorf("scanRecord: parse provenance: %w", err)
		}
	}
	if syncMetaJSON.Valid && syncMetaJSON.String != "" && syncMetaJSON.String != "null" {
		if err := json.Unmarshal([]byte(syncMetaJSON.String), &rec.SyncMetadata); err != nil {
			return nil, fmt.Errorf("scanRecord: parse sync_metadata: %w", err)
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}

	return &rec, nil
}

func filterRecordsByTags(records []*memory.Record, tags []string) []*memory.Record {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}
	var out []*memory.Record
	for _, rec := range records {
		for _, t := range rec.Tags {
			if _, ok := want[t]; ok {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

var _ storage.Store = (*Client)(nil)
