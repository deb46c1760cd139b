package memory

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is the system-wide embedding dimension. Every vector stored or
// compared by the engine must have exactly this length; mismatches are
// rejected, never truncated.
const EmbeddingDim = 1536

// MaxContentLength bounds the content of a single memory entry in bytes.
const MaxContentLength = 8192

// Category classifies what kind of information a memory holds.
type Category string

const (
	CategoryPreference   Category = "preference"
	CategoryPersonalInfo Category = "personal_info"
	CategoryContext      Category = "context"
	CategoryInstruction  Category = "instruction"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryPreference,
	CategoryPersonalInfo,
	CategoryContext,
	CategoryInstruction,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPreference, CategoryPersonalInfo, CategoryContext, CategoryInstruction:
		return true
	}
	return false
}

// FactType classifies a single extracted proposition.
type FactType string

const (
	FactPreference   FactType = "preference"
	FactAttribute    FactType = "attribute"
	FactRelationship FactType = "relationship"
	FactBehavior     FactType = "behavior"
	FactGoal         FactType = "goal"
)

// Valid reports whether t is a known fact type.
func (t FactType) Valid() bool {
	switch t {
	case FactPreference, FactAttribute, FactRelationship, FactBehavior, FactGoal:
		return true
	}
	return false
}

// RelationType classifies a directed edge between two memories.
type RelationType string

const (
	RelationContradicts RelationType = "contradicts"
	RelationSupports    RelationType = "supports"
	RelationElaborates  RelationType = "elaborates"
	RelationSupersedes  RelationType = "supersedes"
	RelationRelated     RelationType = "related"
)

// Valid reports whether r is a known relation type.
func (r RelationType) Valid() bool {
	switch r {
	case RelationContradicts, RelationSupports, RelationElaborates, RelationSupersedes, RelationRelated:
		return true
	}
	return false
}

// Entry is a single stored memory. Entries are exclusively owned by one user;
// no layer of the engine ever exposes an entry across owners.
type Entry struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Content         string    `json:"content"`
	Category        Category  `json:"category"`
	ImportanceScore float64   `json:"importance_score"`
	Keywords        []string  `json:"keywords,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	SemanticHash    string    `json:"semantic_hash,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	AccessCount     int       `json:"access_count"`
	LastAccessedAt  time.Time `json:"last_accessed_at,omitempty"`
}

// Fact is a single proposition decomposed from an entry. A fact belongs to
// exactly one entry and is deleted together with it.
type Fact struct {
	ID         string   `json:"id"`
	MemoryID   string   `json:"memory_id"`
	Type       FactType `json:"type"`
	Statement  string   `json:"statement"`
	Confidence float64  `json:"confidence"`
	Verified   bool     `json:"verified"`
}

// Relationship is a directed, typed edge between two memories of the same
// owner. Self-loops are invalid; cycles are permitted.
type Relationship struct {
	ID         string       `json:"id"`
	OwnerID    string       `json:"owner_id"`
	SourceID   string       `json:"source_id"`
	TargetID   string       `json:"target_id"`
	Type       RelationType `json:"type"`
	Strength   float64      `json:"strength"`
	Confidence float64      `json:"confidence"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewEntry creates an entry with a fresh ID, the default importance of 0.5
// and the creation timestamp set.
func NewEntry(ownerID, content string, category Category) *Entry {
	return &Entry{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Content:         content,
		Category:        category,
		ImportanceScore: 0.5,
		CreatedAt:       time.Now().UTC(),
	}
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Validate checks the entry invariants: non-empty owner and content, bounded
// content, known category, clamped importance and a correctly sized embedding
// when one is present.
func (e *Entry) Validate() error {
	if e.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if e.Content == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(e.Content) > MaxContentLength {
		return &ValidationError{Field: "content", Reason: "exceeds maximum length"}
	}
	if !e.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category: " + string(e.Category)}
	}
	if e.ImportanceScore < 0 || e.ImportanceScore > 1 {
		return &ValidationError{Field: "importance_score", Reason: "must be within [0,1]"}
	}
	if len(e.Embedding) != 0 && len(e.Embedding) != EmbeddingDim {
		return ErrDimensionMismatch
	}
	return nil
}

// Validate checks the relationship invariants: both endpoints set, no
// self-loop, a known type and clamped strength/confidence.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return &ValidationError{Field: "source_id/target_id", Reason: "must not be empty"}
	}
	if r.SourceID == r.TargetID {
		return &ValidationError{Field: "target_id", Reason: "self-referencing edge"}
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown relation type: " + string(r.Type)}
	}
	if r.Strength < 0 || r.Strength > 1 {
		return &ValidationError{Field: "strength", Reason: "must be within [0,1]"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be within [0,1]"}
	}
	return nil
}

// Touch records a retrieval hit on the entry.
func (e *Entry) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}
