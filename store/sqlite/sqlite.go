package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	mem "github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// SqliteStore implements store.Store using SQLite. Embeddings are stored as
// JSON and similarity is computed client-side over the owner's rows; the
// backend is a durable collaborator, not a vector search engine.
type SqliteStore struct {
	db *sql.DB
}

var _ store.Store = (*SqliteStore)(nil)

// SqliteOptions configuration for the SQLite connection.
type SqliteOptions struct {
	Path string // Database file path, ":memory:" for tests
}

// NewSqliteStore opens the database and creates the schema if needed.
func NewSqliteStore(opts SqliteOptions) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := &SqliteStore{db: db}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the necessary tables if they do not exist.
func (s *SqliteStore) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		importance REAL NOT NULL,
		keywords TEXT,
		embedding TEXT,
		semantic_hash TEXT,
		created_at TIMESTAMP NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories (owner_id);
	CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories (owner_id, semantic_hash);

	CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		statement TEXT NOT NULL,
		confidence REAL NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_facts_memory ON facts (memory_id);

	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		source_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		strength REAL NOT NULL,
		confidence REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_relationships_owner ON relationships (owner_id);
	`
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) PutEntry(ctx context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	keywords, embedding, err := marshalEntryBlobs(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OwnerID, entry.Content, string(entry.Category), entry.ImportanceScore,
		keywords, embedding, entry.SemanticHash, entry.CreatedAt, entry.AccessCount, nullTime(entry.LastAccessedAt))
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (s *SqliteStore) GetEntry(ctx context.Context, ownerID, id string) (*mem.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at
		FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)
	return scanEntry(row)
}

func (s *SqliteStore) UpdateEntry(ctx context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	keywords, embedding, err := marshalEntryBlobs(entry)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET content = ?, category = ?, importance = ?, keywords = ?, embedding = ?, semantic_hash = ?, access_count = ?, last_accessed_at = ?
		WHERE owner_id = ? AND id = ?`,
		entry.Content, string(entry.Category), entry.ImportanceScore, keywords, embedding,
		entry.SemanticHash, entry.AccessCount, nullTime(entry.LastAccessedAt), entry.OwnerID, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return mem.ErrNotFound
	}
	return nil
}

func (s *SqliteStore) DeleteEntry(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return mem.ErrNotFound
	}
	return nil
}

func (s *SqliteStore) ListEntries(ctx context.Context, ownerID string) ([]*mem.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at
		FROM memories WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SqliteStore) FindByHash(ctx context.Context, ownerID, hash string) (*mem.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at
		FROM memories WHERE owner_id = ? AND semantic_hash = ? LIMIT 1`, ownerID, hash)
	return scanEntry(row)
}

// Nearest loads the owner's embedded entries and ranks them by cosine
// similarity in Go.
func (s *SqliteStore) Nearest(ctx context.Context, ownerID string, vector []float32, k int) ([]store.SearchResult, error) {
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

func (s *SqliteStore) SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit int) ([]*mem.Entry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	var conds []string
	args := []any{ownerID}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		conds = append(conds, "(content LIKE ? OR keywords LIKE ?)")
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}
	if len(conds) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, owner_id, content, category, importance, keywords, embedding, semantic_hash, created_at, access_count, last_accessed_at
		FROM memories WHERE owner_id = ? AND (%s) ORDER BY created_at DESC`, strings.Join(conds, " OR "))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *SqliteStore) PutFact(ctx context.Context, ownerID string, fact *mem.Fact) error {
	if !fact.Type.Valid() {
		return &mem.ValidationError{Field: "type", Reason: "unknown fact type: " + string(fact.Type)}
	}
	if _, err := s.GetEntry(ctx, ownerID, fact.MemoryID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (id, memory_id, type, statement, confidence, verified)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fact.ID, fact.MemoryID, string(fact.Type), fact.Statement, fact.Confidence, fact.Verified)
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}
	return nil
}

func (s *SqliteStore) ListFacts(ctx context.Context, ownerID, memoryID string) ([]*mem.Fact, error) {
	if _, err := s.GetEntry(ctx, ownerID, memoryID); err != nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, memory_id, type, statement, confidence, verified FROM facts WHERE memory_id = ?`, memoryID)
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

func (s *SqliteStore) PutRelationship(ctx context.Context, rel *mem.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.SourceID); err != nil {
		return err
	}
	if _, err := s.GetEntry(ctx, rel.OwnerID, rel.TargetID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, owner_id, source_id, target_id, type, strength, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.OwnerID, rel.SourceID, rel.TargetID, string(rel.Type), rel.Strength, rel.Confidence, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

func (s *SqliteStore) ListRelationships(ctx context.Context, ownerID, memoryID string) ([]*mem.Relationship, error) {
	query := `SELECT id, owner_id, source_id, target_id, type, strength, confidence, created_at FROM relationships WHERE owner_id = ?`
	args := []any{ownerID}
	if memoryID != "" {
		query += ` AND (source_id = ? OR target_id = ?)`
		args = append(args, memoryID, memoryID)
	}
	query += ` ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func marshalEntryBlobs(entry *mem.Entry) (keywords, embedding []byte, err error) {
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

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*mem.Entry, error) {
	var e mem.Entry
	var category string
	var keywords, embedding []byte
	var lastAccessed sql.NullTime
	err := row.Scan(&e.ID, &e.OwnerID, &e.Content, &category, &e.ImportanceScore,
		&keywords, &embedding, &e.SemanticHash, &e.CreatedAt, &e.AccessCount, &lastAccessed)
	if err == sql.ErrNoRows {
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
	if lastAccessed.Valid {
		e.LastAccessedAt = lastAccessed.Time
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*mem.Entry, error) {
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
