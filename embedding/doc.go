// Package embedding produces and caches vector embeddings and content
// fingerprints for the memory engine.
//
// Text is first normalized (markdown rendered, HTML stripped, lowercased,
// whitespace collapsed) so that formatting never defeats deduplication. The
// semantic hash is the sha256 of that normalized form.
//
// Cache wraps any Embedder with a bounded LRU and time-based expiry, keyed
// per owner by content hash. Provider failures surface as a typed
// memory.ProviderError: callers fail open (create without dedup) instead of
// blocking memory creation.
//
//	cache := embedding.NewCache(embedding.NewOpenAIEmbedder(apiKey), embedding.DefaultCacheConfig())
//	vec, hash, err := cache.Embed(ctx, ownerID, "I prefer morning workouts")
//
// Any langchaingo embedder can be plugged in through NewLangChainEmbedder.
package embedding
