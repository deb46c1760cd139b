package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mem "github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// DBPool defines the interface for a database connection pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements store.Store using PostgreSQL. Embeddings and
// keyword sets live in JSONB columns; similarity is computed client-side.
type PostgresStore struct {
	pool DBPool
}

var _ store.Store = (*PostgresStore)(nil)

// PostgresOptions configuration for the Postgres connection.
type PostgresOptions struct {
	ConnString string
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool. Useful for testing with
// mocks.
func NewPostgresStoreWithPool(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the necessary tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL,
			keywords JSONB,
			embedding JSONB,
			semantic_hash TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories (owner_id);
		CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories (owner_id, semantic_hash);
		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			statement TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE TABLE IF NOT EXISTS relationships (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			source_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			strength DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const entryColumns = `id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at`

func (s *PostgresStore) PutEntry(ctx context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	keywords, embedding, err := marshalBlobs(entry)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO memories (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.OwnerID, entry.Content, string(entry.Category), entry.ImportanceScore,
		keywords, embedding, entry.SemanticHash, entry.CreatedAt, entry.AccessCount, nullableTime(entry.LastAccessedAt))
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, ownerID, id string) (*mem.Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM memories WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanEntry(row)
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	keywords, embedding, err := marshalBlobs(entry)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE memories SET content = $1, category = $2, importance = $3, keywords = $4, embedding = $5,
			semantic_hash = $6, access_count = $7, last_accessed_at = $8
		WHERE owner_id = $9 AND id = $10`,
		entry.Content, string(entry.Category), entry.ImportanceScore, keywords, embedding,
		entry.SemanticHash, entry.AccessCount, nullableTime(entry.LastAccessedAt), entry.OwnerID, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mem.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mem.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, ownerID string) ([]*mem.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM memories WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) FindByHash(ctx context.Context, ownerID, hash string) (*mem.Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM memories WHERE owner_id = $1 AND semantic_hash = $2 LIMIT 1`, ownerID, hash)
	return scanEntry(row)
}

func (s *PostgresStore) Nearest(ctx context.Context, ownerID string, vector []float32, k int) ([]store.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	entries, err := s.ListEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	results := make([]store.SearchResult, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		results = append(results, store.SearchResult{Entry: e, Score: store.CosineSimilarity(vector, e.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *PostgresStore) SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit int) ([]*mem.Entry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	var conds []string
	args := []any{ownerID}
	i := 2
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		conds = append(conds, fmt.Sprintf("(content ILIKE $%d OR keywords::text ILIKE $%d)", i, i))
		args = append(args, "%"+kw+"%")
		i++
	}
	if len(conds) == 0 {
		return nil, nil
	}
	query := `SELECT ` + entryColumns + ` FROM memories WHERE owner_id = $1 AND (` + strings.Join(conds, " OR ") + `) ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) PutFact(ctx context.Context, ownerID string, fact *mem.Fact) error {
	if !fact.Type.Valid() {
		return &mem.ValidationError{Field: "type", Reason: "unknown fact type: " + string(fact.Type)}
	}
	if _, err := s.GetEntry(ctx, ownerID, fact.MemoryID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO facts (id, memory_id, type, statement, confidence, verified)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fact.ID, fact.MemoryID, string(fact.Type), fact.Statement, fact.Confidence, fact.Verified)
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFacts(ctx context.Context, ownerID, memoryID string) ([]*mem.Fact, error) {
	if _, err := s.GetEntry(ctx, ownerID, memoryID); err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, memory_id, type, statement, confidence, verified FROM facts WHERE memory_id = $1`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var facts []*mem.Fact
	for rows.Next() {
		var f mem.Fact
		var ftype string
		if err := rows.Scan(&f.ID, &f.MemoryID, &ftype, &f.Statement, &f.Confidence, &f.Verified); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f.Type = mem.FactType(ftype)
		facts = append(facts, &f)
	}
	return facts, rows.Err()
}

func (s *PostgresStore) PutRelationship(ctx context.Context, rel *mem.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.SourceID); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.TargetID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO relationships (id, owner_id, source_id, target_id, type, strength, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rel.ID, rel.OwnerID, rel.SourceID, rel.TargetID, string(rel.Type), rel.Strength, rel.Confidence, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRelationships(ctx context.Context, ownerID, memoryID string) ([]*mem.Relationship, error) {
	query := `SELECT id, owner_id, source_id, target_id, type, strength, confidence, created_at FROM relationships WHERE owner_id = $1`
	args := []any{ownerID}
	if memoryID != "" {
		query += ` AND (source_id = $2 OR target_id = $2)`
		args = append(args, memoryID)
	}
	query += ` ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var rels []*mem.Relationship
	for rows.Next() {
		var r mem.Relationship
		var rtype string
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.SourceID, &r.TargetID, &rtype, &r.Strength, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		r.Type = mem.RelationType(rtype)
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

func marshalBlobs(entry *mem.Entry) (keywords, embedding []byte, err error) {
	keywords, err = json.Marshal(entry.Keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}
	embedding, err = json.Marshal(entry.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return keywords, embedding, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanEntry(row pgx.Row) (*mem.Entry, error) {
	var e mem.Entry
	var category string
	var keywords, embedding []byte
	var lastAccessed *time.Time
	err := row.Scan(&e.ID, &e.OwnerID, &e.Content, &category, &e.ImportanceScore,
		&keywords, &embedding, &e.SemanticHash, &e.CreatedAt, &e.AccessCount, &lastAccessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mem.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}
	e.Category = mem.Category(category)
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &e.Keywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &e.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	if lastAccessed != nil {
		e.LastAccessedAt = *lastAccessed
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]*mem.Entry, error) {
	var entries []*mem.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
