package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "github.com/smallnest/memograph/memory"
	memstore "github.com/smallnest/memograph/store/memory"
)

func TestAnalyzeMemoryRecordsContradiction(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	now := time.Now().UTC()

	stored := entryWith("I love coffee", 0, now.Add(-time.Hour))
	incoming := entryWith("I hate coffee", 0.25, now)
	require.NoError(t, st.PutEntry(ctx, stored))
	require.NoError(t, st.PutEntry(ctx, incoming))

	eng := NewEngine(st)
	rels, err := eng.AnalyzeMemory(ctx, "owner-1", incoming.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, mem.RelationContradicts, rels[0].Type)
	assert.Greater(t, rels[0].Confidence, 0.7)

	persisted, err := st.ListRelationships(ctx, "owner-1", incoming.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, rels[0].ID, persisted[0].ID)
}

func TestAnalyzeMemorySkipsExistingEdges(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	now := time.Now().UTC()

	stored := entryWith("I love coffee", 0, now.Add(-time.Hour))
	incoming := entryWith("I hate coffee", 0.25, now)
	require.NoError(t, st.PutEntry(ctx, stored))
	require.NoError(t, st.PutEntry(ctx, incoming))

	eng := NewEngine(st)
	first, err := eng.AnalyzeMemory(ctx, "owner-1", incoming.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := eng.AnalyzeMemory(ctx, "owner-1", incoming.ID)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestAnalyzeMemoryIgnoresOtherOwners(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	now := time.Now().UTC()

	incoming := entryWith("I hate coffee", 0, now)
	require.NoError(t, st.PutEntry(ctx, incoming))

	other := mem.NewEntry("owner-2", "I love coffee", mem.CategoryPreference)
	other.Embedding = vecAt(0.1)
	require.NoError(t, st.PutEntry(ctx, other))

	eng := NewEngine(st)
	rels, err := eng.AnalyzeMemory(ctx, "owner-1", incoming.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestAnalyzeMemoryMissingEntry(t *testing.T) {
	st := memstore.New()
	eng := NewEngine(st)
	_, err := eng.AnalyzeMemory(context.Background(), "owner-1", "nope")
	assert.ErrorIs(t, err, mem.ErrNotFound)
}

func TestSupersedesPointsFromNewer(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	now := time.Now().UTC()

	old := entryWith("I drink coffee every day", 0, now.Add(-90*24*time.Hour))
	newer := entryWith("I no longer drink coffee", 0.2, now)
	require.NoError(t, st.PutEntry(ctx, old))
	require.NoError(t, st.PutEntry(ctx, newer))

	// Analyzed from the older side: the edge must still point newer -> older.
	eng := NewEngine(st)
	rels, err := eng.AnalyzeMemory(ctx, "owner-1", old.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, mem.RelationSupersedes, rels[0].Type)
	assert.Equal(t, newer.ID, rels[0].SourceID)
	assert.Equal(t, old.ID, rels[0].TargetID)
}

func TestGraphTraversal(t *testing.T) {
	rels := []*mem.Relationship{
		{ID: "r1", OwnerID: "o", SourceID: "a", TargetID: "b", Type: mem.RelationRelated},
		{ID: "r2", OwnerID: "o", SourceID: "b", TargetID: "c", Type: mem.RelationSupports},
		{ID: "r3", OwnerID: "o", SourceID: "c", TargetID: "d", Type: mem.RelationRelated},
		{ID: "r4", OwnerID: "o", SourceID: "c", TargetID: "a", Type: mem.RelationRelated}, // cycle
		{ID: "r5", OwnerID: "o", SourceID: "x", TargetID: "y", Type: mem.RelationRelated},
	}
	g := NewGraph("o", rels)

	assert.Equal(t, []string{"b", "c", "d"}, g.Connected("a", 0))
	assert.Equal(t, []string{"b", "c", "d"}, g.Connected("a", 5))
	assert.Equal(t, []string{"b", "c"}, g.Connected("a", 1))
	assert.Equal(t, []string{"y"}, g.Connected("x", 0))
	assert.Empty(t, g.Connected("z", 0))
}

func TestGraphContradictions(t *testing.T) {
	rels := []*mem.Relationship{
		{ID: "r1", OwnerID: "o", SourceID: "a", TargetID: "b", Type: mem.RelationContradicts},
		{ID: "r2", OwnerID: "o", SourceID: "a", TargetID: "c", Type: mem.RelationSupports},
	}
	g := NewGraph("o", rels)

	require.Len(t, g.Contradictions("b"), 1)
	assert.Equal(t, "r1", g.Contradictions("b")[0].ID)
	assert.Empty(t, g.Contradictions("c"))
}

func TestDrawMermaid(t *testing.T) {
	rels := []*mem.Relationship{
		{ID: "r1", OwnerID: "o", SourceID: "a", TargetID: "b", Type: mem.RelationContradicts, Confidence: 0.8},
	}
	g := NewGraph("o", rels)

	out := g.DrawMermaid(map[string]string{"a": "loves coffee", "b": "hates coffee"})
	assert.Contains(t, out, "flowchart TD")
	assert.Contains(t, out, "loves coffee")
	assert.Contains(t, out, "contradicts")
	assert.Contains(t, out, "-.->")
}
