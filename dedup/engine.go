// Package dedup decides what happens when a new memory arrives: store it,
// fold it into an existing memory, or drop it as a duplicate.
//
// Resolution runs in two stages. A semantic-hash lookup short-circuits
// byte-identical resubmissions before any vector work. Otherwise the
// candidate is compared against its nearest stored memories and banded by
// cosine similarity: near-exact matches are skipped, high-similarity
// matches are merged, moderate matches are stored with a "related" edge to
// the closest neighbor, and everything below that is stored as new.
//
// Merging unions keywords, keeps the higher importance score and lets the
// newer content win, unless a stored fact contradicts the incoming content
// with strictly higher confidence, in which case the stored content is kept
// and the conflict is reported for review.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/relationship"
	"github.com/smallnest/memograph/store"
)

// Action is the outcome of resolving a candidate memory.
type Action string

const (
	// ActionCreate means the candidate was stored as a new memory.
	ActionCreate Action = "create"
	// ActionMerge means the candidate was folded into an existing memory.
	ActionMerge Action = "merge"
	// ActionSkip means the candidate duplicated an existing memory.
	ActionSkip Action = "skip"
)

// Config tunes the resolution bands.
type Config struct {
	// K is how many nearest memories are considered.
	K int
	// ExactThreshold and above is treated as a duplicate.
	ExactThreshold float64
	// MergeThreshold and above (below exact) folds into the match.
	MergeThreshold float64
	// RelatedThreshold and above (below merge) stores the candidate and
	// links it to the closest match.
	RelatedThreshold float64

	Logger log.Logger
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		K:                50,
		ExactThreshold:   0.95,
		MergeThreshold:   0.85,
		RelatedThreshold: 0.70,
		Logger:           log.Default(),
	}
}

// Result reports what resolution did with a candidate.
type Result struct {
	Action Action
	// Memory is the surviving entry: the stored duplicate on skip, the
	// merged entry on merge, the candidate on create.
	Memory *memory.Entry
	// Similarity is the best cosine score against stored memories, zero
	// when resolution never reached the vector stage.
	Similarity float64
	// Conflicts lists stored facts that contradicted the candidate with
	// higher confidence during a merge.
	Conflicts []*memory.DedupConflict
}

// Engine resolves candidate memories against a store.
type Engine struct {
	store  store.Store
	config Config
	logger log.Logger
	now    func() time.Time
}

// New creates a dedup engine. Zero config fields fall back to defaults.
func New(s store.Store, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = def.K
	}
	if cfg.ExactThreshold == 0 {
		cfg.ExactThreshold = def.ExactThreshold
	}
	if cfg.MergeThreshold == 0 {
		cfg.MergeThreshold = def.MergeThreshold
	}
	if cfg.RelatedThreshold == 0 {
		cfg.RelatedThreshold = def.RelatedThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return &Engine{store: s, config: cfg, logger: cfg.Logger, now: time.Now}
}

// Resolve runs the candidate through hash short-circuit, vector banding and
// the chosen action, persisting the outcome. The candidate must carry its
// owner, content and category; embedding and semantic hash are optional but
// without them the candidate is stored as-is, at the declared risk of
// duplicates.
func (e *Engine) Resolve(ctx context.Context, candidate *memory.Entry) (*Result, error) {
	candidate.ImportanceScore = memory.Clamp01(candidate.ImportanceScore)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	// Byte-identical resubmission: same normalized content hash.
	if candidate.SemanticHash != "" {
		existing, err := e.store.FindByHash(ctx, candidate.OwnerID, candidate.SemanticHash)
		if err == nil {
			return &Result{Action: ActionSkip, Memory: existing, Similarity: 1}, nil
		}
		if !errors.Is(err, memory.ErrNotFound) {
			return nil, fmt.Errorf("hash lookup: %w", err)
		}
	}

	if len(candidate.Embedding) == 0 {
		e.logger.Warn("dedup: candidate %s has no embedding, storing without similarity check", candidate.ID)
		return e.create(ctx, candidate, nil, 0)
	}

	results, err := e.store.Nearest(ctx, candidate.OwnerID, candidate.Embedding, e.config.K)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}

	var best *store.SearchResult
	for i := range results {
		if best == nil || results[i].Score > best.Score {
			best = &results[i]
		}
	}
	if best == nil {
		return e.create(ctx, candidate, nil, 0)
	}

	switch {
	case best.Score >= e.config.ExactThreshold:
		return &Result{Action: ActionSkip, Memory: best.Entry, Similarity: best.Score}, nil
	case best.Score >= e.config.MergeThreshold:
		return e.merge(ctx, candidate, best.Entry, best.Score)
	case best.Score >= e.config.RelatedThreshold:
		return e.create(ctx, candidate, best.Entry, best.Score)
	default:
		return e.create(ctx, candidate, nil, best.Score)
	}
}

// create stores the candidate, linking it to neighbor when one fell in the
// related band.
func (e *Engine) create(ctx context.Context, candidate, neighbor *memory.Entry, score float64) (*Result, error) {
	if err := e.store.PutEntry(ctx, candidate); err != nil {
		return nil, fmt.Errorf("store entry: %w", err)
	}
	if neighbor != nil {
		rel := &memory.Relationship{
			ID:         uuid.NewString(),
			OwnerID:    candidate.OwnerID,
			SourceID:   candidate.ID,
			TargetID:   neighbor.ID,
			Type:       memory.RelationRelated,
			Strength:   memory.Clamp01(score),
			Confidence: memory.Clamp01(score),
			CreatedAt:  e.now().UTC(),
		}
		if err := e.store.PutRelationship(ctx, rel); err != nil {
			e.logger.Warn("dedup: link %s -> %s: %v", candidate.ID, neighbor.ID, err)
		}
	}
	return &Result{Action: ActionCreate, Memory: candidate, Similarity: score}, nil
}

// merge folds the candidate into target. Keywords are unioned, importance
// keeps the maximum and the newer content wins unless a stored fact
// contradicts it with strictly higher confidence.
func (e *Engine) merge(ctx context.Context, candidate, target *memory.Entry, score float64) (*Result, error) {
	target.Keywords = unionKeywords(target.Keywords, candidate.Keywords)
	if candidate.ImportanceScore > target.ImportanceScore {
		target.ImportanceScore = candidate.ImportanceScore
	}

	conflicts, err := e.detectConflicts(ctx, candidate, target)
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		// Temporal precedence: the newer statement describes the user now.
		target.Content = candidate.Content
		target.Embedding = candidate.Embedding
		target.SemanticHash = candidate.SemanticHash
	}

	if err := e.store.UpdateEntry(ctx, target); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return &Result{Action: ActionMerge, Memory: target, Similarity: score, Conflicts: conflicts}, nil
}

// detectConflicts compares the incoming content against the target's stored
// facts. A stored fact that opposes the incoming statement and carries
// strictly higher confidence than the candidate's importance blocks the
// content replacement.
func (e *Engine) detectConflicts(ctx context.Context, candidate, target *memory.Entry) ([]*memory.DedupConflict, error) {
	facts, err := e.store.ListFacts(ctx, target.OwnerID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	var conflicts []*memory.DedupConflict
	for _, fact := range facts {
		if !relationship.Opposes(fact.Statement, candidate.Content) {
			continue
		}
		if fact.Confidence > candidate.ImportanceScore {
			conflicts = append(conflicts, &memory.DedupConflict{
				MemoryID:   target.ID,
				FactID:     fact.ID,
				Stored:     fact.Statement,
				Incoming:   candidate.Content,
				Confidence: fact.Confidence,
			})
		}
	}
	return conflicts, nil
}

func unionKeywords(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, kw := range append(append([]string{}, a...), b...) {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
