package relationship

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// Engine discovers and records relationships between memories held in a
// store. It is usually driven by the background queue after a memory is
// created or merged.
type Engine struct {
	store      store.Store
	config     ClassifierConfig
	neighborsK int
	logger     log.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClassifierConfig overrides the classifier tuning.
func WithClassifierConfig(cfg ClassifierConfig) EngineOption {
	return func(e *Engine) { e.config = cfg }
}

// WithNeighborsK sets how many nearest memories a new entry is compared
// against.
func WithNeighborsK(k int) EngineOption {
	return func(e *Engine) { e.neighborsK = k }
}

// WithLogger sets the engine logger.
func WithLogger(l log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a relationship engine on top of the given store.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      s,
		config:     DefaultClassifierConfig(),
		neighborsK: 20,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeMemory compares the given memory against its nearest neighbors and
// records every edge the classifier finds. Failures on individual pairs are
// logged and skipped so one bad pair never blocks the rest of the batch.
// It returns the relationships written.
func (e *Engine) AnalyzeMemory(ctx context.Context, ownerID, memoryID string) ([]*memory.Relationship, error) {
	entry, err := e.store.GetEntry(ctx, ownerID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("load memory %s: %w", memoryID, err)
	}

	candidates, err := e.candidates(ctx, entry)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.ListRelationships(ctx, ownerID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	// Pairs already linked with the same edge type are skipped; a different
	// classification (say, contradicts over an earlier related link) still
	// gets recorded.
	linked := make(map[string]struct{}, len(existing))
	for _, rel := range existing {
		linked[rel.SourceID+"|"+rel.TargetID+"|"+string(rel.Type)] = struct{}{}
		linked[rel.TargetID+"|"+rel.SourceID+"|"+string(rel.Type)] = struct{}{}
	}

	var written []*memory.Relationship
	for _, other := range candidates {
		if other.ID == entry.ID {
			continue
		}
		cls := Classify(entry, other, e.config)
		if cls == nil {
			continue
		}
		if _, ok := linked[entry.ID+"|"+other.ID+"|"+string(cls.Type)]; ok {
			continue
		}
		rel := e.buildEdge(entry, other, cls)
		if err := e.store.PutRelationship(ctx, rel); err != nil {
			e.logger.Warn("relationship: store edge %s -> %s: %v", rel.SourceID, rel.TargetID, err)
			continue
		}
		written = append(written, rel)
	}
	return written, nil
}

// candidates picks the memories worth comparing against: the nearest by
// vector when the entry has an embedding, otherwise the owner's full set.
func (e *Engine) candidates(ctx context.Context, entry *memory.Entry) ([]*memory.Entry, error) {
	if len(entry.Embedding) > 0 {
		results, err := e.store.Nearest(ctx, entry.OwnerID, entry.Embedding, e.neighborsK)
		if err != nil {
			return nil, fmt.Errorf("nearest neighbors: %w", err)
		}
		entries := make([]*memory.Entry, 0, len(results))
		for _, r := range results {
			entries = append(entries, r.Entry)
		}
		return entries, nil
	}
	entries, err := e.store.ListEntries(ctx, entry.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// buildEdge orients the edge. Supersedes points from the newer statement to
// the one it replaces; every other type points from the analyzed memory to
// its counterpart.
func (e *Engine) buildEdge(entry, other *memory.Entry, cls *Classification) *memory.Relationship {
	source, target := entry, other
	if cls.Type == memory.RelationSupersedes && other.CreatedAt.After(entry.CreatedAt) {
		source, target = other, entry
	}
	return &memory.Relationship{
		ID:         uuid.NewString(),
		OwnerID:    entry.OwnerID,
		SourceID:   source.ID,
		TargetID:   target.ID,
		Type:       cls.Type,
		Strength:   cls.Strength,
		Confidence: cls.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
}
