// Package relationship discovers typed edges between memories and exposes
// them as a traversable graph.
//
// The classifier compares a pair of entries on three signals: embedding
// cosine similarity, lexical overlap and temporal proximity. Opposed
// statements about the same subject become contradicts edges (or supersedes
// when far apart in time); highly similar statements become supports or
// elaborates edges; moderately similar ones become related edges. Each edge
// carries a blended confidence score.
//
// The Engine runs the classifier for a memory against its nearest
// neighbors, typically from a background queue task:
//
//	eng := relationship.NewEngine(st)
//	rels, err := eng.AnalyzeMemory(ctx, ownerID, memoryID)
//
// Graph wraps an owner's relationships in an adjacency view with cycle-safe
// breadth-first traversal, plus Mermaid export and styled terminal
// rendering for inspection.
package relationship
