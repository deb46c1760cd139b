// Package memory provides the in-process reference implementation of the
// persistence collaborator. It keeps everything in owner-scoped maps behind a
// RWMutex and computes vector similarity on the fly, which is plenty for
// tests, demos and single-user deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	mem "github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

type ownerData struct {
	entries       map[string]*mem.Entry
	byHash        map[string]string // semantic hash -> entry id
	facts         map[string][]*mem.Fact
	relationships map[string]*mem.Relationship
}

// InMemoryStore implements store.Store with plain maps.
type InMemoryStore struct {
	mu     sync.RWMutex
	owners map[string]*ownerData
}

var _ store.Store = (*InMemoryStore)(nil)

// New returns an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{owners: make(map[string]*ownerData)}
}

func (s *InMemoryStore) owner(ownerID string) *ownerData {
	od, ok := s.owners[ownerID]
	if !ok {
		od = &ownerData{
			entries:       make(map[string]*mem.Entry),
			byHash:        make(map[string]string),
			facts:         make(map[string][]*mem.Fact),
			relationships: make(map[string]*mem.Relationship),
		}
		s.owners[ownerID] = od
	}
	return od
}

func (s *InMemoryStore) PutEntry(_ context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	od := s.owner(entry.OwnerID)
	cp := *entry
	od.entries[entry.ID] = &cp
	if entry.SemanticHash != "" {
		od.byHash[entry.SemanticHash] = entry.ID
	}
	return nil
}

func (s *InMemoryStore) GetEntry(_ context.Context, ownerID, id string) (*mem.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, mem.ErrNotFound
	}
	entry, ok := od.entries[id]
	if !ok {
		return nil, mem.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *InMemoryStore) UpdateEntry(_ context.Context, entry *mem.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.owners[entry.OwnerID]
	if !ok {
		return mem.ErrNotFound
	}
	old, ok := od.entries[entry.ID]
	if !ok {
		return mem.ErrNotFound
	}
	if old.SemanticHash != "" && old.SemanticHash != entry.SemanticHash {
		delete(od.byHash, old.SemanticHash)
	}
	cp := *entry
	od.entries[entry.ID] = &cp
	if entry.SemanticHash != "" {
		od.byHash[entry.SemanticHash] = entry.ID
	}
	return nil
}

// DeleteEntry removes the entry, its facts and every edge touching it.
func (s *InMemoryStore) DeleteEntry(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return mem.ErrNotFound
	}
	entry, ok := od.entries[id]
	if !ok {
		return mem.ErrNotFound
	}
	delete(od.entries, id)
	if entry.SemanticHash != "" {
		delete(od.byHash, entry.SemanticHash)
	}
	delete(od.facts, id)
	for relID, rel := range od.relationships {
		if rel.SourceID == id || rel.TargetID == id {
			delete(od.relationships, relID)
		}
	}
	return nil
}

func (s *InMemoryStore) ListEntries(_ context.Context, ownerID string) ([]*mem.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	entries := make([]*mem.Entry, 0, len(od.entries))
	for _, e := range od.entries {
		cp := *e
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

func (s *InMemoryStore) FindByHash(_ context.Context, ownerID, hash string) (*mem.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, mem.ErrNotFound
	}
	id, ok := od.byHash[hash]
	if !ok {
		return nil, mem.ErrNotFound
	}
	cp := *od.entries[id]
	return &cp, nil
}

func (s *InMemoryStore) Nearest(_ context.Context, ownerID string, vector []float32, k int) ([]store.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	results := make([]store.SearchResult, 0, len(od.entries))
	for _, e := range od.entries {
		if len(e.Embedding) == 0 {
			continue
		}
		cp := *e
		results = append(results, store.SearchResult{
			Entry: &cp,
			Score: store.CosineSimilarity(vector, e.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *InMemoryStore) SearchKeywords(_ context.Context, ownerID string, keywords []string, limit int) ([]*mem.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	var matches []*mem.Entry
	for _, e := range od.entries {
		if matchesKeywords(e, keywords) {
			cp := *e
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func matchesKeywords(e *mem.Entry, keywords []string) bool {
	content := strings.ToLower(e.Content)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(content, kw) {
			return true
		}
		for _, own := range e.Keywords {
			if strings.EqualFold(own, kw) {
				return true
			}
		}
	}
	return false
}

func (s *InMemoryStore) PutFact(_ context.Context, ownerID string, fact *mem.Fact) error {
	if !fact.Type.Valid() {
		return &mem.ValidationError{Field: "type", Reason: "unknown fact type: " + string(fact.Type)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return mem.ErrNotFound
	}
	if _, ok := od.entries[fact.MemoryID]; !ok {
		return mem.ErrNotFound
	}
	cp := *fact
	od.facts[fact.MemoryID] = append(od.facts[fact.MemoryID], &cp)
	return nil
}

func (s *InMemoryStore) ListFacts(_ context.Context, ownerID, memoryID string) ([]*mem.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	facts := make([]*mem.Fact, 0, len(od.facts[memoryID]))
	for _, f := range od.facts[memoryID] {
		cp := *f
		facts = append(facts, &cp)
	}
	return facts, nil
}

// PutRelationship validates the edge and checks that both endpoints exist for
// the owner before storing it.
func (s *InMemoryStore) PutRelationship(_ context.Context, rel *mem.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.owners[rel.OwnerID]
	if !ok {
		return mem.ErrNotFound
	}
	if _, ok := od.entries[rel.SourceID]; !ok {
		return mem.ErrNotFound
	}
	if _, ok := od.entries[rel.TargetID]; !ok {
		return mem.ErrNotFound
	}
	cp := *rel
	od.relationships[rel.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListRelationships(_ context.Context, ownerID, memoryID string) ([]*mem.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	od, ok := s.owners[ownerID]
	if !ok {
		return nil, nil
	}
	var rels []*mem.Relationship
	for _, rel := range od.relationships {
		if memoryID == "" || rel.SourceID == memoryID || rel.TargetID == memoryID {
			cp := *rel
			rels = append(rels, &cp)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].CreatedAt.Before(rels[j].CreatedAt) })
	return rels, nil
}
