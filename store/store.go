package store

import (
	"context"
	"math"

	"github.com/smallnest/memograph/memory"
)

// SearchResult pairs a matched entry with its similarity score.
type SearchResult struct {
	Entry *memory.Entry
	Score float64
}

// Store is the persistence collaborator the engine talks to. Every operation
// is scoped to an owner: backends must never return another owner's data.
// Backends provide CRUD for entries, facts and relationships plus the two
// candidate-generation queries the engine needs, nearest-by-vector and
// keyword search.
type Store interface {
	// PutEntry stores a new entry. The entry must pass validation.
	PutEntry(ctx context.Context, entry *memory.Entry) error
	// GetEntry returns the owner's entry or memory.ErrNotFound.
	GetEntry(ctx context.Context, ownerID, id string) (*memory.Entry, error)
	// UpdateEntry replaces an existing entry or returns memory.ErrNotFound.
	UpdateEntry(ctx context.Context, entry *memory.Entry) error
	// DeleteEntry removes the entry together with its facts and any
	// relationship touching it.
	DeleteEntry(ctx context.Context, ownerID, id string) error
	// ListEntries returns all of the owner's entries.
	ListEntries(ctx context.Context, ownerID string) ([]*memory.Entry, error)

	// FindByHash returns the owner's entry with the given semantic hash, or
	// memory.ErrNotFound. This is dedup's exact-match short circuit.
	FindByHash(ctx context.Context, ownerID, hash string) (*memory.Entry, error)
	// Nearest returns up to k of the owner's entries ranked by cosine
	// similarity to the query vector.
	Nearest(ctx context.Context, ownerID string, vector []float32, k int) ([]SearchResult, error)
	// SearchKeywords returns the owner's entries matching any of the given
	// keywords in content or keyword set.
	SearchKeywords(ctx context.Context, ownerID string, keywords []string, limit int) ([]*memory.Entry, error)

	// PutFact attaches a fact to its parent entry.
	PutFact(ctx context.Context, ownerID string, fact *memory.Fact) error
	// ListFacts returns all facts of the owner's entry.
	ListFacts(ctx context.Context, ownerID, memoryID string) ([]*memory.Fact, error)

	// PutRelationship stores a validated edge. Both endpoints must exist and
	// belong to the same owner.
	PutRelationship(ctx context.Context, rel *memory.Relationship) error
	// ListRelationships returns all edges touching the owner's entry, or all
	// of the owner's edges when memoryID is empty.
	ListRelationships(ctx context.Context, ownerID, memoryID string) ([]*memory.Relationship, error)
}

// CosineSimilarity computes the cosine similarity of two vectors. Mismatched
// or zero-magnitude inputs score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
