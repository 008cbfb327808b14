// Package sqlite implements storage.Store on top of SQLite, the
// single-file backend suitable for local development, tests, and
// single-node deployments. Records are stored with JSON-TEXT columns for
// the variable-shape fields (tags, metadata, embeddings, provenance),
// exactly as the teacher's SQLite client stores its embedding column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// Config configures a Client.
type Config struct {
	// DBPath is the filesystem path to the SQLite database file.
	DBPath string

	// TableName is the table used to store records. Defaults to
	// "memory_records".
	TableName string
}

// Client implements storage.Store backed by a SQLite database.
type Client struct {
	db    *sql.DB
	table string
}

// NewClient opens (creating if needed) the SQLite database at cfg.DBPath
// and ensures the record table and its indexes exist.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TableName == "" {
		cfg.TableName = "memory_records"
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, memory.WrapOp("sqlite.NewClient", fmt.Errorf("create db dir: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, memory.WrapOp("sqlite.NewClient", err)
	}
	if err := db.Ping(); err != nil {
		return nil, memory.WrapOp("sqlite.NewClient", err)
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
			importance REAL NOT NULL DEFAULT 0.5,
			strength REAL NOT NULL DEFAULT 1.0,
			tags TEXT,
			metadata TEXT,
			embedding TEXT,
			embeddings TEXT,
			created_at DATETIME NOT NULL,
			modified_at DATETIME NOT NULL,
			last_accessed_at DATETIME NOT NULL,
			expires_at DATETIME,
			access_count INTEGER NOT NULL DEFAULT 0,
			usage_count INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			information_class TEXT NOT NULL DEFAULT 'internal',
			provenance TEXT,
			sync_metadata TEXT
		)
	`, c.table)
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return memory.WrapOp("sqlite.initTables", err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_tenant_layer ON %s(tenant_id, layer)", c.table, c.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_tenant_agent ON %s(tenant_id, agent_id)", c.table, c.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)", c.table, c.table),
	}
	for _, q := range indexes {
		if _, err := c.db.ExecContext(ctx, q); err != nil {
			return memory.WrapOp("sqlite.initTables", err)
		}
	}
	return nil
}

// Insert implements storage.Store.
func (c *Client) Insert(ctx context.Context, rec *memory.Record) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
	}
	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
	}
	embeddings, err := json.Marshal(rec.Embeddings)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
	}
	provenance, err := json.Marshal(rec.Provenance)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
	}
	syncMeta, err := json.Marshal(rec.SyncMetadata)
	if err != nil {
		return memory.WrapOp("sqlite.Insert", err)
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
		return memory.WrapOp("sqlite.Insert", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
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
		return nil, memory.WrapOp("sqlite.Get", memory.ErrNotFound)
	}
	if err != nil {
		return nil, memory.WrapOp("sqlite.Get", err)
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
		return memory.WrapOp("sqlite.Update", fmt.Errorf("%w: %v", memory.ErrStorageOperation, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("sqlite.Update", err)
	}
	if n == 0 {
		return memory.WrapOp("sqlite.Update", memory.ErrNotFound)
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
		return memory.WrapOp("sqlite.Delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return memory.WrapOp("sqlite.Delete", err)
	}
	if n == 0 {
		return memory.WrapOp("sqlite.Delete", memory.ErrNotFound)
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
		return nil, memory.WrapOp("sqlite.List", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("sqlite.List", err)
		}
		out = append(out, rec)
	}
	if filterByTags(opts.Tags) {
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
		return 0, memory.WrapOp("sqlite.Count", err)
	}
	return n, nil
}

// DeleteMatching implements storage.Store.
func (c *Client) DeleteMatching(ctx context.Context, opts storage.ListOptions) (int64, error) {
	clause, args := buildListClause(opts)
	query := fmt.Sprintf("DELETE FROM %s %s", c.table, clause)
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, memory.WrapOp("sqlite.DeleteMatching", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, memory.WrapOp("sqlite.DeleteMatching", err)
	}
	log.Debug().Int64("deleted", n).Str("table", c.table).Msg("bulk delete matched records")
	return n, nil
}

// FullTextSearch implements storage.Store with a LIKE-based
// case-insensitive substring match, ranked by occurrence count. SQLite's
// FTS5 virtual-table module is not assumed to be compiled into the
// driver's build, so this stays a plain content scan — adequate at the
// scale an in-process reference backend is meant for.
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
		return nil, memory.WrapOp("sqlite.FullTextSearch", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, memory.WrapOp("sqlite.FullTextSearch", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.WrapOp("sqlite.FullTextSearch", err)
	}

	lowerQuery := strings.ToLower(query)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.Count(strings.ToLower(out[i].Content), lowerQuery) > strings.Count(strings.ToLower(out[j].Content), lowerQuery)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// DistinctTenantIDs implements storage.Store.
func (c *Client) DistinctTenantIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT tenant_id FROM %s", c.table)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, memory.WrapOp("sqlite.DistinctTenantIDs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, memory.WrapOp("sqlite.DistinctTenantIDs", err)
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

func filterByTags(tags []string) bool {
	return len(tags) > 0
}

// filterRecordsByTags keeps records that contain at least one of the
// requested tags. SQLite's JSON1 extension would let this run in-query;
// this module does not assume JSON1 is compiled into the driver's build,
// so tag filtering is done in memory, same as the teacher's in-memory
// cosine similarity pass during Search.
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
