package relationship

import (
	"context"
	"fmt"
	"sort"

	"github.com/smallnest/memograph/memory"
	"github.com/smallnest/memograph/store"
)

// Graph is an in-memory adjacency view over an owner's relationships.
// Edges are directed but traversal follows them in both directions, so a
// contradiction is discoverable from either endpoint.
type Graph struct {
	ownerID  string
	outgoing map[string][]*memory.Relationship
	incoming map[string][]*memory.Relationship
	edges    []*memory.Relationship
}

// NewGraph builds a graph from a set of relationships.
func NewGraph(ownerID string, rels []*memory.Relationship) *Graph {
	g := &Graph{
		ownerID:  ownerID,
		outgoing: make(map[string][]*memory.Relationship),
		incoming: make(map[string][]*memory.Relationship),
	}
	for _, rel := range rels {
		g.add(rel)
	}
	return g
}

// LoadGraph reads all of an owner's relationships from the store and builds
// the graph.
func LoadGraph(ctx context.Context, s store.Store, ownerID string) (*Graph, error) {
	rels, err := s.ListRelationships(ctx, ownerID, "")
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	return NewGraph(ownerID, rels), nil
}

func (g *Graph) add(rel *memory.Relationship) {
	g.edges = append(g.edges, rel)
	g.outgoing[rel.SourceID] = append(g.outgoing[rel.SourceID], rel)
	g.incoming[rel.TargetID] = append(g.incoming[rel.TargetID], rel)
}

// Edges returns every edge in the graph.
func (g *Graph) Edges() []*memory.Relationship {
	return g.edges
}

// Neighbors returns the edges touching the given memory, outgoing and
// incoming.
func (g *Graph) Neighbors(memoryID string) []*memory.Relationship {
	var out []*memory.Relationship
	out = append(out, g.outgoing[memoryID]...)
	out = append(out, g.incoming[memoryID]...)
	return out
}

// Contradictions returns the contradicting edges touching the given memory.
func (g *Graph) Contradictions(memoryID string) []*memory.Relationship {
	var out []*memory.Relationship
	for _, rel := range g.Neighbors(memoryID) {
		if rel.Type == memory.RelationContradicts {
			out = append(out, rel)
		}
	}
	return out
}

// Connected walks the graph breadth-first from a starting memory and returns
// every memory ID reachable within maxDepth hops, not including the start.
// A visited set makes the walk safe on cyclic graphs. maxDepth <= 0 means
// unlimited.
func (g *Graph) Connected(startID string, maxDepth int) []string {
	visited := map[string]struct{}{startID: {}}
	frontier := []string{startID}
	var reached []string

	for depth := 0; len(frontier) > 0; depth++ {
		if maxDepth > 0 && depth >= maxDepth {
			break
		}
		var next []string
		for _, id := range frontier {
			for _, rel := range g.Neighbors(id) {
				other := rel.TargetID
				if other == id {
					other = rel.SourceID
				}
				if _, seen := visited[other]; seen {
					continue
				}
				visited[other] = struct{}{}
				reached = append(reached, other)
				next = append(next, other)
			}
		}
		frontier = next
	}
	sort.Strings(reached)
	return reached
}
