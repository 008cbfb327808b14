// Package oceanbase implements storage.Store on top of OceanBase's
// MySQL-compatible interface, the namesake production backend behind
// the single-file SQLite reference adapter. Schema and query shape
// mirror pkg/storage/sqlite's Client (same columns, same JSON-TEXT
// encoding of variable-shape fields); the MySQL driver's "?" positional
// placeholders match SQLite's exactly, so only the column types and the
// inline index declarations differ; full-text search is the same LIKE
// scan ranked by occurrence count.
//
// Grounded on the teacher's pkg/storage/oceanbase/client.go (this
// module's go-sql-driver/mysql usage and connection/table-init
// pattern), generalized from its single-table embedding-search schema
// to the full memory.Record CRUD contract storage.Store requires.
package oceanbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
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
	TableName string // defaults to "memory_records"
}

// Client implements storage.Store backed by OceanBase (MySQL wire
// protocol).
type Client struct {
	db    *sql.DB
	table string
}

// NewClient opens an OceanBase connection and ensures the record table
// and its indexes exist.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memory_records"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, memory.WrapOp("oceanbase.NewClient", err)
	}
	if err := db.Ping(); err != nil {
		return nil, memory.WrapOp("oceanbase.NewClient", err)
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
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(255) NOT NULL,
			project VARCHAR(255) NOT NULL DEFAULT '',
			agent_id VARCHAR(255) NOT NULL DEFAULT '',
			session_id VARCHAR(255) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			layer VARCHAR(32) NOT NULL,
			memory_type VARCHAR(32) NOT NULL,
			source VARCHAR(255) NOT NULL DEFAULT '',
			importance DOUBLE NOT NULL DEFAULT 0.5,
			strength DOUBLE NOT NULL DEFAULT 1.0,
			tags JSON,
			metadata JSON,
			embedding JSON,
			embeddings JSON,
			created_at DATETIME(6) NOT NULL,
			modified_at DATETIME(6) NOT NULL,
			last_accessed_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6),
			access_count BIGINT NOT NULL DEFAULT 0,
			usage_count BIGINT NOT NULL DEFAULT 0,
			version INT NOT NULL DEFAULT 1,
			information_class VARCHAR(32) NOT NULL DEFAULT 'internal',
			provenance JSON,
			sync_metadata JSON,
			INDEX idx_tenant_layer (tenant_id, layer),
			INDEX idx_tenant_agent (tenant_id, agent_id),
			INDEX idx_expires (expires_at)
		)
	`, c.table)
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return memory.WrapOp("oceanbase.initTables", err)
	}
	return nil
}

// Insert implements storage.Store.
func (c *Client) Insert(ctx context.Context, rec *memory.Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}
	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}
	embeddings, err := json.Marshal(rec.Embeddings)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}
	provenance, err := json.Marshal(rec.Provenance)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}
	syncMeta, err := json.Marshal(rec.SyncMetadata)
	if err != nil {
		return memory.WrapOp("oceanbase.Insert", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, tenant_id, project, agent_id, session_id, content, layer,
			memory_type, source, importance, strength, tags, metadata,
			embedding, embeddings, created_at, modified_at, last_accessed_at,
			expires_at, access_count, usage_count, version, information_class,
			provenance, sync_metadata
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
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
		return memory.WrapOp("oceanbase.Insert", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func scopeClause(scope storage.AccessScope, args []interface{}) (string, []interface{}) {
	clause := ""
	if scope.TenantID != "" {
		clause += " AND tenant_id = ?"
		args = append(args, scope.TenantID)
	}
	if scope.AgentID != "" {
		clause += " AND agent_id = ?"
		args = append(args, scope.AgentID)
	}
	return clause, args
}

// Get implements storage.Store.
func (c *Client) Get(ctx context.Context, id uuid.UUID, scope storage.AccessScope) (*memory.Record, error) {
	args := []interface{}{id.String()}
	clause, args := scopeClause(scope, args)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?%s", selectColumns, c.table, clause)
	row := c.db.QueryRowContext(ctx, query, args...)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, memory.WrapOp("oceanbase.Get", memory.ErrNotFound)
	}
	if err != nil {
		return nil, memory.WrapOp("oceanbase.Get", err)
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
	clause, args := scopeClause(scope, args)

	query := fmt.Sprintf(`
		UPDATE %s SET
			project=?, agent_id=?, session_id=?, content=?, layer=?,
			memory_type=?, source=?, importance=?, strength=?, tags=?,
			metadata=?, embedding=?, embeddings=?, modified_at=?,
			last_accessed_at=?, expires_at=?, access_count=?, usage_count=?,
			version=?, information_class=?, provenance=?, sync_metadata=?
		WHERE id = ?%s
	`, c.table, clause)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memory.WrapOp("oceanbase.Update", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("oceanbase.Update", err)
	}
	if n == 0 {
		return memory.WrapOp("oceanbase.Update", memory.ErrNotFound)
	}
	return nil
}

// Delete implements storage.Store.
func (c *Client) Delete(ctx context.Context, id uuid.UUID, scope storage.AccessScope) error {
	args := []interface{}{id.String()}
	clause, args := scopeClause(scope, args)

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?%s", c.table, clause)
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return memory.WrapOp("oceanbase.Delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("oceanbase.Delete", err)
	}
	if n == 0 {
		return memory.WrapOp("oceanbase.Delete", memory.ErrNotFound)
	}
	return nil
}

func buildListClause(opts storage.ListOptions) (string, []interface{}) {
	clause := "WHERE 1=1"
	var args []interface{}
	if opts.TenantID != "" {
		clause += " AND tenant_id = ?"
		args = append(args, opts.TenantID)
	}
	if opts.Project != "" {
		clause += " AND project = ?"
		args = append(args, opts.Project)
	}
	if opts.AgentID != "" {
		clause += " AND agent_id = ?"
		args = append(args, opts.AgentID)
	}
	if opts.Layer != "" {
		clause += " AND layer = ?"
		args = append(args, string(opts.Layer))
	}
	return clause, args
}

// List implements storage.Store.
func (c *Client) List(ctx context.Context, opts storage.ListOptions) ([]*memory.Record, error) {
	clause, args := buildListClause(opts)
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY created_at DESC", selectColumns, c.table, clause)

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.WrapOp("oceanbase.List", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("oceanbase.List", err)
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
	clause, args := buildListClause(opts)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", c.table, clause)
	var n int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, memory.WrapOp("oceanbase.Count", err)
	}
	return n, nil
}

// DeleteMatching implements storage.Store.
func (c *Client) DeleteMatching(ctx context.Context, opts storage.ListOptions) (int64, error) {
	clause, args := buildListClause(opts)
	query := fmt.Sprintf("DELETE FROM %s %s", c.table, clause)
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, memory.WrapOp("oceanbase.DeleteMatching", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, memory.WrapOp("oceanbase.DeleteMatching", err)
	}
	log.Debug().Int64("deleted", n).Str("table", c.table).Msg("bulk delete matched records")
	return n, nil
}

// FullTextSearch implements storage.Store with a LIKE-based
// case-insensitive substring match, ranked by occurrence count.
// OceanBase's MySQL-compatible mode supports FULLTEXT indexes, but not
// assuming one is declared on an arbitrary deployment's table, this
// stays a plain content scan like pkg/storage/sqlite's, adequate at
// reference scale.
func (c *Client) FullTextSearch(ctx context.Context, opts storage.ListOptions, query string) ([]*memory.Record, error) {
	if query == "" {
		return nil, nil
	}
	clause, args := buildListClause(opts)
	clause += " AND LOWER(content) LIKE ?"
	args = append(args, "%"+strings.ToLower(query)+"%")

	sqlQuery := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY created_at DESC", selectColumns, c.table, clause)
	rows, err := c.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, memory.WrapOp("oceanbase.FullTextSearch", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("oceanbase.FullTextSearch", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.WrapOp("oceanbase.FullTextSearch", err)
	}

	lowerQuery := strings.ToLower(query)
	sortByOccurrenceCount(out, lowerQuery)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func sortByOccurrenceCount(records []*memory.Record, lowerQuery string) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0; j-- {
			a := strings.Count(strings.ToLower(records[j].Content), lowerQuery)
			b := strings.Count(strings.ToLower(records[j-1].Content), lowerQuery)
			if a <= b {
				break
			}
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// DistinctTenantIDs implements storage.Store.
func (c *Client) DistinctTenantIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT tenant_id FROM %s", c.table)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, memory.WrapOp("oceanbase.DistinctTenantIDs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, memory.WrapOp("oceanbase.DistinctTenantIDs", err)
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
