// Package retrieval ranks stored memories against conversation context.
//
// Candidates come from a union of vector search and keyword matching, then
// each is scored on four weighted factors: semantic similarity, recency,
// importance and access frequency. The score cut-off scales with query
// specificity, so vague context accepts weaker matches than a precise
// question. Results are filtered for category diversity and capped, and
// each returned memory has its access recorded.
//
// The engine degrades instead of failing: without a working embedding
// provider it falls back to lexical matching and marks the response
// Degraded, and a context deadline returns whatever was ranked in time.
// Responses are cached per owner and query fingerprint for a short TTL;
// writers call Invalidate to drop an owner's cache after a mutation.
package retrieval
