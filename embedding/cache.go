package embedding

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
)

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	MaxEntries int           // Evict least-recently-used beyond this size
	TTL        time.Duration // Entries older than this are recomputed
	Logger     log.Logger
}

// DefaultCacheConfig returns the default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 2048,
		TTL:        15 * time.Minute,
	}
}

type cacheEntry struct {
	key       string
	vector    []float32
	hash      string
	expiresAt time.Time
}

// Cache wraps an Embedder with a bounded LRU+TTL cache keyed per owner by the
// semantic hash of the normalized input. Results tolerate TTL-bounded
// staleness; strict consistency is not required.
type Cache struct {
	embedder Embedder
	config   CacheConfig
	logger   log.Logger

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element

	hits   uint64
	misses uint64
}

// NewCache creates a caching front for the given embedder.
func NewCache(embedder Embedder, config CacheConfig) *Cache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig().TTL
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		embedder: embedder,
		config:   config,
		logger:   logger,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Embed returns the vector and semantic hash for the owner's text. Cache
// misses call the provider; provider failures come back as a typed
// ProviderError so callers can fail open and skip deduplication rather than
// block memory creation.
func (c *Cache) Embed(ctx context.Context, ownerID, text string) ([]float32, string, error) {
	hash := SemanticHash(text)
	key := ownerID + ":" + hash

	if vec, ok := c.lookup(key); ok {
		return vec, hash, nil
	}

	vec, err := c.embedder.Embed(ctx, Normalize(text))
	if err != nil {
		c.logger.Warn("embedding provider failed for owner %s: %v", ownerID, err)
		return nil, hash, &memory.ProviderError{Provider: "embedding", Err: err}
	}
	if err := checkDimension(vec); err != nil {
		return nil, hash, err
	}

	c.store(key, vec, hash)
	return vec, hash, nil
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.vector, true
}

func (c *Cache) store(key string, vec []float32, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.vector = vec
		entry.expiresAt = time.Now().Add(c.config.TTL)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{
		key:       key,
		vector:    vec,
		hash:      hash,
		expiresAt: time.Now().Add(c.config.TTL),
	})
	c.entries[key] = el

	for c.order.Len() > c.config.MaxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
