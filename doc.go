// Memograph - A Memory Management Engine for Conversational AI
//
// Memograph decides which conversational content is worth remembering,
// deduplicates and merges it against prior knowledge, maintains a typed
// relationship graph between memories, processes the heavy lifting on a
// background queue, and ranks the most relevant memories for a new
// conversational turn. Every operation is scoped to an owner; no layer
// ever returns another owner's memories.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/memograph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/memograph/embedding"
//		"github.com/smallnest/memograph/engine"
//		memstore "github.com/smallnest/memograph/store/memory"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		eng := engine.New(memstore.New(), engine.Config{
//			Embedder: embedding.NewOpenAIEmbedder("api-key"),
//		})
//		eng.Start(ctx)
//		defer eng.Stop()
//
//		res, _ := eng.CreateOrMerge(ctx, "user-42", "I prefer morning workouts", nil)
//		fmt.Println(res.Action, res.MemoryID)
//
//		resp, _ := eng.Retrieve(ctx, "user-42", "when should we schedule the next session", nil)
//		for _, m := range resp.Memories {
//			fmt.Printf("%.2f %s\n", m.Score, m.Entry.Content)
//		}
//	}
//
// # Packages
//
//   - engine: the facade wiring the whole pipeline together
//   - detect: decides whether text is worth remembering (LLM with a
//     rule-based fallback)
//   - embedding: embedding providers, normalization, semantic hashing and
//     an LRU+TTL vector cache
//   - dedup: similarity banding and the skip/merge/create policy
//   - relationship: pairwise edge classification and the memory graph
//   - queue: the priority background queue with circuit breaker and retries
//   - retrieval: multi-factor ranked retrieval with diversity filtering
//   - store: the persistence collaborator interface with in-memory, SQLite,
//     Redis and PostgreSQL backends
//
// The synchronous write path never blocks on background work, and provider
// failures degrade the pipeline instead of failing it: a broken embedding
// provider still stores memories, and retrieval falls back to lexical
// matching.
package memograph
